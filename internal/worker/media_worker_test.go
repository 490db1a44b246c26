package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/repository"
	"github.com/clipforge/api/internal/store"
)

// writeOutputRunner stands in for ffmpeg: it writes the output path (the
// last argument) so the pipeline's output checks pass.
type writeOutputRunner struct{}

func (writeOutputRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if strings.Contains(name, "ffprobe") {
		return []byte(`{"streams":[],"format":{}}`), nil, nil
	}
	outPath := args[len(args)-1]
	if err := os.WriteFile(outPath, []byte("media-bytes"), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

// flakySuppressor fails its first failures invocations, then passes the
// audio through.
type flakySuppressor struct {
	failures int
	calls    int
}

func (s *flakySuppressor) Suppress(ctx context.Context, audioPath string, scope *media.ArtifactScope, onProgress media.ProgressFunc) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("isolation model crashed")
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}
	return scope.Write("wav", data)
}

type workerFixture struct {
	jobs   *store.MemoryJobStore
	assets *repository.MemoryAssetRepository
	worker *MediaWorker
}

func newWorkerFixture(t *testing.T, suppressor media.NoiseSuppressor) *workerFixture {
	t.Helper()
	jobs := store.NewMemoryJobStore()
	assets := repository.NewMemoryAssetRepository()

	ffmpeg := media.NewFFmpegWithRunner("ffmpeg", "ffprobe", writeOutputRunner{})
	pipeline := media.NewPipeline(ffmpeg, suppressor, &media.StubTranscriber{}, assets)

	return &workerFixture{
		jobs:   jobs,
		assets: assets,
		worker: NewMediaWorker(jobs, assets, pipeline, nil),
	}
}

func (f *workerFixture) submitJob(t *testing.T, jobType model.JobType, mimeType string) (*model.Job, *model.TaskPayload) {
	t.Helper()
	asset := &model.MediaAsset{
		AssetID:      uuid.New().String(),
		OwnerID:      "user-1",
		ProjectID:    "project-1",
		OriginalName: "clip.mp4",
		MimeType:     mimeType,
		StoragePath:  "assets/u/a/clip.mp4",
		Duration:     12.5,
		HasAudio:     true,
	}
	f.assets.Seed(asset, []byte("source-media"))

	input := model.InputData{
		SourcePath:   asset.StoragePath,
		OriginalName: asset.OriginalName,
		MimeType:     asset.MimeType,
		Duration:     asset.Duration,
		HasAudio:     asset.HasAudio,
	}
	job, err := f.jobs.Create(context.Background(), jobType, asset.OwnerID, asset.ProjectID, asset.AssetID, input)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job, &model.TaskPayload{
		JobID:     job.JobID,
		OwnerID:   job.OwnerID,
		ProjectID: job.ProjectID,
		AssetID:   job.AssetID,
		InputData: job.InputData,
	}
}

func TestRun_NoiseRemovalCompletes(t *testing.T) {
	f := newWorkerFixture(t, &flakySuppressor{})
	job, payload := f.submitJob(t, model.JobTypeNoiseRemoval, "video/mp4")
	before := f.assets.AssetCount()

	if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, 0, 2); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := f.jobs.Get(context.Background(), job.JobID, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Progress != 100 {
		t.Errorf("expected progress 100, got %d", got.Progress)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("expected started and completed timestamps")
	}
	if got.OutputData == nil || got.OutputData.ResultAssetID == "" {
		t.Fatal("expected a result asset reference")
	}
	if f.assets.AssetCount() != before+1 {
		t.Errorf("expected exactly one new asset, got %d -> %d", before, f.assets.AssetCount())
	}
}

func TestRun_SubtitleGenerationCompletes(t *testing.T) {
	f := newWorkerFixture(t, &flakySuppressor{})
	job, payload := f.submitJob(t, model.JobTypeSubtitleGeneration, "video/mp4")
	before := f.assets.AssetCount()

	if err := f.worker.run(context.Background(), model.JobTypeSubtitleGeneration, payload, 0, 2); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.OutputData == nil || len(got.OutputData.Subtitles) == 0 {
		t.Fatal("expected subtitle segments in output")
	}
	if got.OutputData.ResultAssetID != "" {
		t.Error("subtitle jobs must not reference a result asset")
	}
	if f.assets.AssetCount() != before {
		t.Error("subtitle jobs must not create assets")
	}
}

func TestRun_BudgetExhaustedFailsTerminally(t *testing.T) {
	f := newWorkerFixture(t, &flakySuppressor{failures: 10})
	job, payload := f.submitJob(t, model.JobTypeNoiseRemoval, "video/mp4")
	before := f.assets.AssetCount()

	// Three attempts: the first delivery plus two redeliveries
	for attempt := 0; attempt <= 2; attempt++ {
		if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, attempt, 2); err == nil {
			t.Fatalf("attempt %d: expected error", attempt)
		}

		got, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
		if attempt < 2 {
			// Still retryable: the job stays processing, not failed
			if got.Status != model.JobStatusProcessing {
				t.Errorf("attempt %d: expected processing, got %s", attempt, got.Status)
			}
		}
	}

	got, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
	if got.Status != model.JobStatusFailed {
		t.Fatalf("expected failed after exhausted budget, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected a failure message")
	}
	if got.RetryCount != 2 {
		t.Errorf("expected retryCount 2, got %d", got.RetryCount)
	}
	if got.OutputData != nil {
		t.Error("failed job must have no output")
	}
	if f.assets.AssetCount() != before {
		t.Error("no partial output asset may exist after failure")
	}
}

func TestRun_RetryThenSucceed(t *testing.T) {
	f := newWorkerFixture(t, &flakySuppressor{failures: 2})
	job, payload := f.submitJob(t, model.JobTypeNoiseRemoval, "video/mp4")

	for attempt := 0; attempt <= 1; attempt++ {
		if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, attempt, 2); err == nil {
			t.Fatalf("attempt %d: expected error", attempt)
		}
	}
	if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, 2, 2); err != nil {
		t.Fatalf("final attempt: %v", err)
	}

	got, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.RetryCount != 2 {
		t.Errorf("expected retryCount 2 after two burned attempts, got %d", got.RetryCount)
	}
}

func TestRun_RedeliveryAfterCompleteIsNoOp(t *testing.T) {
	f := newWorkerFixture(t, &flakySuppressor{})
	job, payload := f.submitJob(t, model.JobTypeNoiseRemoval, "video/mp4")

	if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, 0, 2); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
	afterFirst := f.assets.AssetCount()

	if err := f.worker.run(context.Background(), model.JobTypeNoiseRemoval, payload, 0, 2); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	second, _ := f.jobs.Get(context.Background(), job.JobID, "user-1")
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("redelivery changed the completion timestamp")
	}
	if second.OutputData.ResultAssetID != first.OutputData.ResultAssetID {
		t.Error("redelivery replaced the result asset")
	}
	if f.assets.AssetCount() != afterFirst {
		t.Error("redelivery created a duplicate asset")
	}
}
