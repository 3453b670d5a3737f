package store

import (
	"context"
	"sync"
	"time"

	"github.com/devello/devello-studios/internal/apimodel"
)

// MemoryStore is a process-local JobStore for the local server and tests.
// Records expire after JobTTL like their DynamoDB counterparts.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]JobRecord
	now  func() time.Time
}

var _ JobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]JobRecord), now: time.Now}
}

func (m *MemoryStore) PutJob(ctx context.Context, job *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.jobs[job.JobID] = *job
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(job.CreatedAt) > JobTTL {
		delete(m.jobs, jobID)
		return nil, nil
	}
	return &job, nil
}

func (m *MemoryStore) CompleteJob(ctx context.Context, jobID string, status apimodel.Status, outputURL, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if ok && job.Status.Terminal() {
		return nil
	}
	if !ok {
		job = JobRecord{JobID: jobID, CreatedAt: m.now()}
	}
	job.Status = status
	job.OutputURL = outputURL
	job.Error = errText
	job.UpdatedAt = m.now()
	m.jobs[jobID] = job
	return nil
}
