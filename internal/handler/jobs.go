package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// StartNoiseRemoval handles POST /api/ai/noise-removal
func (h *JobHandler) StartNoiseRemoval(c *fiber.Ctx) error {
	return h.start(c, model.JobTypeNoiseRemoval)
}

// StartSubtitles handles POST /api/ai/subtitles
func (h *JobHandler) StartSubtitles(c *fiber.Ctx) error {
	return h.start(c, model.JobTypeSubtitleGeneration)
}

func (h *JobHandler) start(c *fiber.Ctx, jobType model.JobType) error {
	var req model.StartJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	summary, err := h.service.Submit(c.Context(), middleware.GetUserID(c), jobType, &req)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.Accepted(c, summary)
}

// Status handles GET /api/ai/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	summary, err := h.service.GetStatus(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.OK(c, summary)
}

// List handles GET /api/ai/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	filters := model.JobListFilters{
		ProjectID: c.Query("projectId"),
		Status:    model.JobStatus(c.Query("status")),
		Type:      model.JobType(c.Query("type")),
	}

	summaries, err := h.service.ListJobs(c.Context(), middleware.GetUserID(c), filters)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.OK(c, fiber.Map{"jobs": summaries})
}

// Retry handles POST /api/ai/jobs/:jobId/retry
func (h *JobHandler) Retry(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	summary, err := h.service.Retry(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.Accepted(c, summary)
}

func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssetNotFound):
		return response.NotFound(c, "Asset not found")
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrUnsupportedAsset):
		return response.UnsupportedAsset(c, err.Error())
	case errors.Is(err, service.ErrJobNotRetryable):
		return response.JobNotRetryable(c, "Only failed jobs can be retried")
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
