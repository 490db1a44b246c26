package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/queue"
	"github.com/clipforge/api/internal/repository"
	"github.com/clipforge/api/internal/store"
)

// Broadcaster pushes best-effort job events to websocket subscribers.
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus)
	BroadcastComplete(jobID string, output *model.OutputData)
	BroadcastError(jobID, code, message string)
}

// NopBroadcaster discards events; used when no hub is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastProgress(string, int, model.JobStatus) {}
func (NopBroadcaster) BroadcastComplete(string, *model.OutputData)   {}
func (NopBroadcaster) BroadcastError(string, string, string)         {}

// MediaWorker leases media jobs from the queue, runs the matching pipeline
// and commits the outcome to the job store. Handlers are idempotent with
// respect to completion, so lease-timeout redelivery is safe.
type MediaWorker struct {
	jobs     store.JobStore
	assets   repository.AssetRepository
	pipeline *media.Pipeline
	hub      Broadcaster
}

// NewMediaWorker creates a worker over the given collaborators.
func NewMediaWorker(jobs store.JobStore, assets repository.AssetRepository, pipeline *media.Pipeline, hub Broadcaster) *MediaWorker {
	if hub == nil {
		hub = NopBroadcaster{}
	}
	return &MediaWorker{
		jobs:     jobs,
		assets:   assets,
		pipeline: pipeline,
		hub:      hub,
	}
}

// ProcessTask is the asynq handler for both job queues.
func (w *MediaWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A malformed payload can never succeed; don't burn retries on it
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobType, err := jobTypeFor(t.Type())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return w.run(ctx, jobType, &payload, attempt, maxRetry)
}

// run executes one delivery attempt. attempt is the number of prior failed
// deliveries; maxRetry is the redelivery budget after the first attempt.
func (w *MediaWorker) run(ctx context.Context, jobType model.JobType, payload *model.TaskPayload, attempt, maxRetry int) error {
	jobID := payload.JobID
	log.Printf("Starting %s job %s (attempt %d)", jobType, jobID, attempt+1)

	// Redelivery can race a worker that crashed after committing; a
	// completed job is acked without re-running the pipeline.
	if job, err := w.jobs.Get(ctx, jobID, payload.OwnerID); err == nil && job.Status == model.JobStatusCompleted {
		log.Printf("Job %s already completed, acking redelivery", jobID)
		return nil
	}

	if attempt > 0 {
		if err := w.jobs.RecordRetry(ctx, jobID, attempt); err != nil {
			log.Printf("Failed to record retry for job %s: %v", jobID, err)
		}
	}

	if err := w.jobs.UpdateProgress(ctx, jobID, 0, model.JobStatusProcessing); err != nil {
		// Can't even mark the job processing; retry the whole attempt
		return w.handleFailure(ctx, payload, attempt, maxRetry, fmt.Errorf("failed to mark job processing: %w", err))
	}
	w.hub.BroadcastProgress(jobID, 0, model.JobStatusProcessing)

	result, err := w.pipeline.Run(ctx, jobType, payload.InputData, func(progress int) {
		// Fire-and-forget: readers may see slightly stale progress, but it
		// never decreases and a dropped write must not abort the pipeline.
		if uerr := w.jobs.UpdateProgress(ctx, jobID, progress); uerr != nil {
			log.Printf("Failed to update progress for job %s: %v", jobID, uerr)
			return
		}
		w.hub.BroadcastProgress(jobID, progress, model.JobStatusProcessing)
	})
	if err != nil {
		return w.handleFailure(ctx, payload, attempt, maxRetry, err)
	}

	output, err := w.buildOutput(ctx, jobType, payload, result)
	if err != nil {
		return w.handleFailure(ctx, payload, attempt, maxRetry, err)
	}

	if err := w.jobs.Complete(ctx, jobID, output); err != nil {
		return w.handleFailure(ctx, payload, attempt, maxRetry, fmt.Errorf("failed to commit completion: %w", err))
	}

	w.hub.BroadcastComplete(jobID, output)
	log.Printf("Job %s completed", jobID)
	return nil
}

// buildOutput turns a pipeline result into the persisted output shape. The
// result asset is only created here, after full pipeline success, so no
// partial output asset can ever exist.
func (w *MediaWorker) buildOutput(ctx context.Context, jobType model.JobType, payload *model.TaskPayload, result *media.Result) (*model.OutputData, error) {
	if jobType == model.JobTypeSubtitleGeneration {
		return &model.OutputData{Subtitles: result.Subtitles}, nil
	}

	req := &model.CreateAssetRequest{
		OriginalName: result.Filename,
		MimeType:     result.MimeType,
		FileSize:     result.FileSize,
		Duration:     payload.InputData.Duration,
		Dimensions:   payload.InputData.Dimensions,
		HasAudio:     true,
	}
	asset, err := w.assets.CreateAsset(ctx, payload.OwnerID, payload.ProjectID, req, result.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store result asset: %w", err)
	}
	return &model.OutputData{
		ResultAssetID:   asset.AssetID,
		ResultAssetPath: asset.StoragePath,
	}, nil
}

// handleFailure is the single place deciding retry versus terminal failure.
// Within the budget the error is returned for queue-level backoff and the
// job stays processing; once the budget is exhausted the job is terminally
// failed with a human-readable message.
func (w *MediaWorker) handleFailure(ctx context.Context, payload *model.TaskPayload, attempt, maxRetry int, cause error) error {
	jobID := payload.JobID

	if attempt < maxRetry {
		log.Printf("Job %s attempt %d failed, will retry: %v", jobID, attempt+1, cause)
		return cause
	}

	log.Printf("Job %s failed after %d attempts: %v", jobID, attempt+1, cause)
	if err := w.jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, "JOB_FAILED", cause.Error())
	return cause
}

func jobTypeFor(taskType string) (model.JobType, error) {
	switch taskType {
	case queue.TaskTypeNoiseRemoval:
		return model.JobTypeNoiseRemoval, nil
	case queue.TaskTypeSubtitleGeneration:
		return model.JobTypeSubtitleGeneration, nil
	default:
		return "", fmt.Errorf("unknown task type: %s", taskType)
	}
}
