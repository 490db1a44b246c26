package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/api/internal/model"
)

// MemoryJobStore is the in-process fallback used in tests and local
// development without Redis. It applies the same transition rules as the
// Redis store.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryJobStore) Create(ctx context.Context, jobType model.JobType, ownerID, projectID, assetID string, input model.InputData) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &model.Job{
		JobID:     uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		OwnerID:   ownerID,
		ProjectID: projectID,
		AssetID:   assetID,
		InputData: input,
		Progress:  0,
		CreatedAt: time.Now(),
	}
	s.jobs[job.JobID] = job

	copied := *job
	return &copied, nil
}

func (s *MemoryJobStore) Get(ctx context.Context, jobID, ownerID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryJobStore) UpdateProgress(ctx context.Context, jobID string, progress int, status ...model.JobStatus) error {
	return s.mutate(jobID, func(job *model.Job) {
		var st *model.JobStatus
		if len(status) > 0 {
			st = &status[0]
		}
		applyProgress(job, progress, st, time.Now())
	})
}

func (s *MemoryJobStore) Complete(ctx context.Context, jobID string, output *model.OutputData) error {
	return s.mutate(jobID, func(job *model.Job) {
		applyComplete(job, output, time.Now())
	})
}

func (s *MemoryJobStore) Fail(ctx context.Context, jobID, message string) error {
	return s.mutate(jobID, func(job *model.Job) {
		applyFail(job, message, time.Now())
	})
}

func (s *MemoryJobStore) RecordRetry(ctx context.Context, jobID string, retryCount int) error {
	return s.mutate(jobID, func(job *model.Job) {
		applyRetry(job, retryCount)
	})
}

func (s *MemoryJobStore) ListByOwner(ctx context.Context, ownerID string, filters model.JobListFilters) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*model.Job
	for _, job := range s.jobs {
		if job.OwnerID != ownerID || !matchesFilters(job, filters) {
			continue
		}
		copied := *job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryJobStore) mutate(jobID string, fn func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}
