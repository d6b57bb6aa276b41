package store

import (
	"context"
	"sync"
	"time"

	"github.com/rasterlabs/rasterflow/internal/domain"
)

// MemoryJobStore keeps jobs in process memory. Suitable for tests and
// single-node deployments without Postgres.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]domain.Job
	usage []domain.UsageLog
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]domain.Job),
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryJobStore) UpdateStatus(_ context.Context, id, status string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *MemoryJobStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, usage)
	return nil
}

// UsageLogs returns a copy of the recorded usage entries.
func (s *MemoryJobStore) UsageLogs() []domain.UsageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UsageLog, len(s.usage))
	copy(out, s.usage)
	return out
}
