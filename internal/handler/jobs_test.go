package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/repository"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/store"
)

const testJWTSecret = "test-secret"

type nopEnqueuer struct{ enqueued int }

func (e *nopEnqueuer) EnqueueJob(ctx context.Context, job *model.Job) error {
	e.enqueued++
	return nil
}

type testApp struct {
	app    *fiber.App
	auth   *middleware.AuthMiddleware
	jobs   *store.MemoryJobStore
	assets *repository.MemoryAssetRepository
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	jobs := store.NewMemoryJobStore()
	assets := repository.NewMemoryAssetRepository()
	svc := service.NewJobService(jobs, assets, &nopEnqueuer{})
	h := NewJobHandler(svc, validator.New())
	auth := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", auth.Authenticate())
	ai := api.Group("/ai")
	ai.Post("/noise-removal", h.StartNoiseRemoval)
	ai.Post("/subtitles", h.StartSubtitles)
	ai.Get("/jobs", h.List)
	ai.Get("/jobs/:jobId", h.Status)
	ai.Post("/jobs/:jobId/retry", h.Retry)

	return &testApp{app: app, auth: auth, jobs: jobs, assets: assets}
}

func (ta *testApp) seedAsset(ownerID string) *model.MediaAsset {
	asset := &model.MediaAsset{
		AssetID:      uuid.New().String(),
		OwnerID:      ownerID,
		ProjectID:    "project-1",
		OriginalName: "clip.mp4",
		MimeType:     "video/mp4",
		StoragePath:  "assets/u/a/clip.mp4",
		Duration:     12.5,
		HasAudio:     true,
	}
	ta.assets.Seed(asset, []byte("media"))
	return asset
}

func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) *http.Response {
	t.Helper()
	token, err := ta.auth.GenerateToken("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("parse body %q: %v", body, err)
	}
	return result
}

func assertErrorCode(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != want {
		t.Errorf("expected code %s, got %v", want, errObj["code"])
	}
}

func TestStartNoiseRemoval_Accepted(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected jobId in response")
	}
	if result["status"] != "pending" {
		t.Errorf("expected status pending, got %v", result["status"])
	}
}

func TestStartNoiseRemoval_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/noise-removal", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStartNoiseRemoval_MissingFields(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal", `{"projectId":"project-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	assertErrorCode(t, resp, "VALIDATION_ERROR")
}

func TestStartNoiseRemoval_UnknownAsset(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+uuid.New().String()+`"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	assertErrorCode(t, resp, "NOT_FOUND")
}

func TestStartSubtitles_Accepted(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/subtitles",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	if result["type"] != "subtitle-generation" {
		t.Errorf("expected subtitle-generation, got %v", result["type"])
	}
}

func TestJobStatus_OwnerScoped(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	created := parseJSON(t, doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`))
	jobID := created["jobId"].(string)

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/ai/jobs/"+jobID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Another owner sees not-found, not forbidden
	otherToken, _ := ta.auth.GenerateToken("user-2", "other@example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/ai/jobs/"+jobID, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	otherResp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if otherResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for other owner, got %d", otherResp.StatusCode)
	}
}

func TestListJobs_FilteredByType(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`)
	doAuthRequest(t, ta, http.MethodPost, "/api/ai/subtitles",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`)

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/ai/jobs?type=noise-removal", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	jobsList, ok := result["jobs"].([]interface{})
	if !ok {
		t.Fatalf("expected jobs array, got %v", result)
	}
	if len(jobsList) != 1 {
		t.Errorf("expected 1 filtered job, got %d", len(jobsList))
	}
}

func TestRetry_PendingJobConflicts(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	created := parseJSON(t, doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`))
	jobID := created["jobId"].(string)

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/jobs/"+jobID+"/retry", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	assertErrorCode(t, resp, "JOB_NOT_RETRYABLE")
}

func TestRetry_FailedJobAccepted(t *testing.T) {
	ta := setupApp(t)
	asset := ta.seedAsset("user-1")

	created := parseJSON(t, doAuthRequest(t, ta, http.MethodPost, "/api/ai/noise-removal",
		`{"projectId":"project-1","assetId":"`+asset.AssetID+`"}`))
	jobID := created["jobId"].(string)

	if err := ta.jobs.Fail(context.Background(), jobID, "worker exploded"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/ai/jobs/"+jobID+"/retry", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	if result["jobId"] == jobID {
		t.Error("retry must return a fresh job id")
	}
}
