package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/model"
)

const jobRetention = 7 * 24 * time.Hour

// RedisJobStore keeps job records as JSON blobs at job:{id} with a per-owner
// sorted set index (user:{id}:jobs scored by creation time) for listing.
type RedisJobStore struct {
	redis *redis.Client
}

// NewRedisJobStore creates a Redis-backed job store.
func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func (s *RedisJobStore) Create(ctx context.Context, jobType model.JobType, ownerID, projectID, assetID string, input model.InputData) (*model.Job, error) {
	now := time.Now()
	job := &model.Job{
		JobID:     uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		OwnerID:   ownerID,
		ProjectID: projectID,
		AssetID:   assetID,
		InputData: input,
		Progress:  0,
		CreatedAt: now,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.redis.ZAdd(ctx, ownerKey(ownerID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: job.JobID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("failed to index job: %w", err)
	}

	return job, nil
}

func (s *RedisJobStore) Get(ctx context.Context, jobID, ownerID string) (*model.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *RedisJobStore) UpdateProgress(ctx context.Context, jobID string, progress int, status ...model.JobStatus) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		var st *model.JobStatus
		if len(status) > 0 {
			st = &status[0]
		}
		applyProgress(job, progress, st, time.Now())
	})
}

func (s *RedisJobStore) Complete(ctx context.Context, jobID string, output *model.OutputData) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		applyComplete(job, output, time.Now())
	})
}

func (s *RedisJobStore) Fail(ctx context.Context, jobID, message string) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		applyFail(job, message, time.Now())
	})
}

func (s *RedisJobStore) RecordRetry(ctx context.Context, jobID string, retryCount int) error {
	return s.mutate(ctx, jobID, func(job *model.Job) {
		applyRetry(job, retryCount)
	})
}

func (s *RedisJobStore) ListByOwner(ctx context.Context, ownerID string, filters model.JobListFilters) ([]*model.Job, error) {
	// Newest first
	ids, err := s.redis.ZRevRange(ctx, ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.getJob(ctx, id)
		if err == ErrJobNotFound {
			// Record expired; drop the stale index entry
			s.redis.ZRem(ctx, ownerKey(ownerID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if matchesFilters(job, filters) {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// mutate loads, transforms and saves one job record. A single worker owns
// each leased job, so load-modify-save is safe without optimistic locking.
func (s *RedisJobStore) mutate(ctx context.Context, jobID string, fn func(*model.Job)) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	fn(job)
	return s.saveJob(ctx, job)
}

func (s *RedisJobStore) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.JobID), data, jobRetention).Err()
}

func (s *RedisJobStore) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func ownerKey(ownerID string) string {
	return fmt.Sprintf("user:%s:jobs", ownerID)
}
