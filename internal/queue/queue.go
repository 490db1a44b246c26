package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/model"
)

// One named queue per job type; the task type doubles as the mux key.
const (
	TaskTypeNoiseRemoval       = "job:noise-removal"
	TaskTypeSubtitleGeneration = "job:subtitle-generation"
)

// TaskType maps a job type to its queue task type.
func TaskType(t model.JobType) string {
	switch t {
	case model.JobTypeNoiseRemoval:
		return TaskTypeNoiseRemoval
	case model.JobTypeSubtitleGeneration:
		return TaskTypeSubtitleGeneration
	default:
		return "job:" + string(t)
	}
}

// QueueName returns the queue a job type is delivered on.
func QueueName(t model.JobType) string {
	return string(t)
}

// Enqueuer is the narrow enqueue interface consumed by the job facade, so
// tests can swap in a recording fake.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job *model.Job) error
}

// AsynqEnqueuer enqueues durable tasks through an asynq client. The task id
// is the job id, so re-enqueueing the same job is deduplicated at the
// transport layer.
type AsynqEnqueuer struct {
	client *asynq.Client
	cfg    config.QueueConfig
}

// NewAsynqEnqueuer creates a queue producer with the given retry policy.
func NewAsynqEnqueuer(client *asynq.Client, cfg config.QueueConfig) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, cfg: cfg}
}

func (e *AsynqEnqueuer) EnqueueJob(ctx context.Context, job *model.Job) error {
	payload := model.TaskPayload{
		JobID:     job.JobID,
		OwnerID:   job.OwnerID,
		ProjectID: job.ProjectID,
		AssetID:   job.AssetID,
		InputData: job.InputData,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskType(job.Type), data)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.JobID),
		asynq.Queue(QueueName(job.Type)),
		asynq.MaxRetry(e.cfg.MaxRetry-1), // MaxRetry counts redeliveries, budget counts attempts
		asynq.Retention(e.cfg.Retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Duplicate submission of an already-queued job is a no-op
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// ExponentialBackoff doubles the base delay per prior attempt.
func ExponentialBackoff(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if n < 0 {
			n = 0
		}
		if n > 16 {
			n = 16
		}
		return base << uint(n)
	}
}

// NewServer builds the consumer side: a fixed pool of parallel leases per
// queue, exponential retry backoff, and lease-timeout redelivery handled by
// asynq itself.
func NewServer(redisOpt asynq.RedisClientOpt, cfg config.QueueConfig) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		// asynq shares one worker pool across queues; equal weights with a
		// pool sized per-queue approximates N leases per queue.
		Concurrency: cfg.Concurrency * 2,
		Queues: map[string]int{
			QueueName(model.JobTypeNoiseRemoval):       1,
			QueueName(model.JobTypeSubtitleGeneration): 1,
		},
		RetryDelayFunc: ExponentialBackoff(cfg.BaseDelay),
	})
}
