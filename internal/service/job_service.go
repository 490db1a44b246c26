package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/queue"
	"github.com/clipforge/api/internal/repository"
	"github.com/clipforge/api/internal/store"
)

// Boundary errors surfaced synchronously to submit/query callers.
var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrUnsupportedAsset = errors.New("asset is not supported for this job type")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotRetryable  = errors.New("only failed jobs can be retried")
)

// JobService is the boundary facade the HTTP layer talks to: it validates
// the target asset, creates the durable job record, and hands the job id to
// the work queue.
type JobService struct {
	jobs     store.JobStore
	assets   repository.AssetRepository
	enqueuer queue.Enqueuer
}

// NewJobService wires the facade from its collaborators.
func NewJobService(jobs store.JobStore, assets repository.AssetRepository, enqueuer queue.Enqueuer) *JobService {
	return &JobService{
		jobs:     jobs,
		assets:   assets,
		enqueuer: enqueuer,
	}
}

// Submit validates the asset, snapshots its properties, creates a pending
// job and enqueues it. Validation failures never create a job record.
func (s *JobService) Submit(ctx context.Context, ownerID string, jobType model.JobType, req *model.StartJobRequest) (*model.JobSummary, error) {
	asset, err := s.assets.GetAsset(ctx, req.AssetID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to resolve asset: %w", err)
	}

	if err := validateAssetFor(jobType, asset); err != nil {
		return nil, err
	}

	input := model.InputData{
		SourcePath:   asset.StoragePath,
		OriginalName: asset.OriginalName,
		MimeType:     asset.MimeType,
		FileSize:     asset.FileSize,
		Duration:     asset.Duration,
		Dimensions:   asset.Dimensions,
		FPS:          asset.FPS,
		HasAudio:     asset.HasAudio,
	}

	job, err := s.jobs.Create(ctx, jobType, ownerID, req.ProjectID, req.AssetID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.enqueuer.EnqueueJob(ctx, job); err != nil {
		// Don't leave a pending record nothing will ever pick up
		if ferr := s.jobs.Fail(ctx, job.JobID, "failed to enqueue job"); ferr != nil {
			log.Printf("Failed to mark unqueued job %s as failed: %v", job.JobID, ferr)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Printf("Submitted %s job %s for asset %s", jobType, job.JobID, req.AssetID)
	return toSummary(job), nil
}

// GetStatus returns the owner-scoped view of one job.
func (s *JobService) GetStatus(ctx context.Context, ownerID, jobID string) (*model.JobSummary, error) {
	job, err := s.jobs.Get(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return toSummary(job), nil
}

// ListJobs returns the owner's jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, ownerID string, filters model.JobListFilters) ([]*model.JobSummary, error) {
	jobs, err := s.jobs.ListByOwner(ctx, ownerID, filters)
	if err != nil {
		return nil, err
	}
	summaries := make([]*model.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, toSummary(job))
	}
	return summaries, nil
}

// Retry resubmits a terminally failed job as a fresh record with a new job
// id. The failed record stays untouched as history.
func (s *JobService) Retry(ctx context.Context, ownerID, jobID string) (*model.JobSummary, error) {
	job, err := s.jobs.Get(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != model.JobStatusFailed {
		return nil, ErrJobNotRetryable
	}

	fresh, err := s.jobs.Create(ctx, job.Type, job.OwnerID, job.ProjectID, job.AssetID, job.InputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry job: %w", err)
	}
	if err := s.enqueuer.EnqueueJob(ctx, fresh); err != nil {
		if ferr := s.jobs.Fail(ctx, fresh.JobID, "failed to enqueue job"); ferr != nil {
			log.Printf("Failed to mark unqueued job %s as failed: %v", fresh.JobID, ferr)
		}
		return nil, fmt.Errorf("failed to enqueue retry job: %w", err)
	}

	log.Printf("Retried failed job %s as %s", jobID, fresh.JobID)
	return toSummary(fresh), nil
}

func validateAssetFor(jobType model.JobType, asset *model.MediaAsset) error {
	if !asset.IsVideo() && !asset.IsAudio() {
		return fmt.Errorf("%w: %s is not audio or video", ErrUnsupportedAsset, asset.MimeType)
	}
	if jobType == model.JobTypeNoiseRemoval && !asset.HasAudio {
		return fmt.Errorf("%w: asset has no audio track", ErrUnsupportedAsset)
	}
	return nil
}

func toSummary(job *model.Job) *model.JobSummary {
	return &model.JobSummary{
		JobID:             job.JobID,
		Type:              job.Type,
		Status:            job.Status,
		Progress:          job.Progress,
		ProjectID:         job.ProjectID,
		AssetID:           job.AssetID,
		EstimatedDuration: estimatedDuration(job.Type),
		OutputData:        job.OutputData,
		ErrorMessage:      job.ErrorMessage,
		CreatedAt:         job.CreatedAt,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
	}
}

// estimatedDuration is a coarse per-type hint in seconds for UI countdowns.
func estimatedDuration(t model.JobType) int {
	if t == model.JobTypeNoiseRemoval {
		return 120
	}
	return 90
}
