package publisher

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// MemoryJobs is a process-local JobStore for single-node setups without
// PostgreSQL. Jobs are lost on restart.
type MemoryJobs struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	byKey map[string]string
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
	}
}

func (m *MemoryJobs) FindByIdempotencyKey(_ context.Context, key string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, nil
	}
	j := *m.jobs[id]
	return &j, nil
}

func (m *MemoryJobs) Create(_ context.Context, job Job, idempotencyKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idempotencyKey != "" {
		if _, ok := m.byKey[idempotencyKey]; ok {
			return apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already in use")
		}
		m.byKey[idempotencyKey] = job.ID
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	m.jobs[job.ID] = &job
	return nil
}

func (m *MemoryJobs) Mark(_ context.Context, id, status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
		j.Detail = detail
		j.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryJobs) Get(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrEntryNotFound, http.StatusNotFound, "job %s", id)
	}
	out := *j
	return &out, nil
}
