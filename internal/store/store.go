package store

import (
	"context"
	"errors"
	"time"

	"github.com/clipforge/api/internal/model"
)

// ErrJobNotFound is returned for unknown job ids and for jobs owned by a
// different user. The owner scope is enforced here, not only at the HTTP
// layer.
var ErrJobNotFound = errors.New("job not found")

// JobStore persists job records and owns every state transition. Records are
// immutable history: a failed job is retried by creating a fresh record, not
// by reopening this one.
type JobStore interface {
	Create(ctx context.Context, jobType model.JobType, ownerID, projectID, assetID string, input model.InputData) (*model.Job, error)
	Get(ctx context.Context, jobID, ownerID string) (*model.Job, error)

	// UpdateProgress sets progress, and optionally transitions status. The
	// first transition into processing stamps StartedAt; repeating it is a
	// no-op on the timestamp. Progress never decreases while processing.
	UpdateProgress(ctx context.Context, jobID string, progress int, status ...model.JobStatus) error

	// Complete is idempotent: queue redelivery can race a worker that
	// crashed after committing, so a second call with the same payload
	// leaves the record unchanged. It never reopens a failed job.
	Complete(ctx context.Context, jobID string, output *model.OutputData) error

	// Fail records the terminal error, preserving the progress reached.
	Fail(ctx context.Context, jobID, message string) error

	// RecordRetry notes how many prior attempts this job has burned.
	RecordRetry(ctx context.Context, jobID string, retryCount int) error

	ListByOwner(ctx context.Context, ownerID string, filters model.JobListFilters) ([]*model.Job, error)
}

// The transition helpers below are shared by the Redis and in-memory
// implementations so both enforce identical state-machine rules.

func applyProgress(job *model.Job, progress int, status *model.JobStatus, now time.Time) {
	if job.Status.Terminal() {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	if status != nil && *status == model.JobStatusProcessing {
		if job.Status != model.JobStatusProcessing {
			job.Status = model.JobStatusProcessing
			job.Progress = progress
		}
		if job.StartedAt == nil {
			started := now
			job.StartedAt = &started
		}
	}

	if progress > job.Progress {
		job.Progress = progress
	}
}

func applyComplete(job *model.Job, output *model.OutputData, now time.Time) {
	// Terminal states are never reopened: repeated completion is the
	// idempotent redelivery case, and a stalled worker finishing after the
	// retry budget already failed the job must not flip it back.
	if job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.OutputData = output
	job.ErrorMessage = ""
	completed := now
	job.CompletedAt = &completed
}

func applyFail(job *model.Job, message string, now time.Time) {
	if job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = message
	completed := now
	job.CompletedAt = &completed
}

func applyRetry(job *model.Job, retryCount int) {
	if retryCount > job.RetryCount {
		job.RetryCount = retryCount
	}
}

func matchesFilters(job *model.Job, filters model.JobListFilters) bool {
	if filters.ProjectID != "" && job.ProjectID != filters.ProjectID {
		return false
	}
	if filters.Status != "" && job.Status != filters.Status {
		return false
	}
	if filters.Type != "" && job.Type != filters.Type {
		return false
	}
	return true
}
