package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// Progress is one update of a running job.
type Progress struct {
	Results []domain.BatchResult
	Done    bool
	At      time.Time
}

// JobStore keeps batch job state. Implementations must apply UpdateProgress
// atomically per job.
type JobStore interface {
	Create(ctx context.Context, job domain.BatchJob) error
	Get(ctx context.Context, id string) (domain.BatchJob, error)
	UpdateProgress(ctx context.Context, id string, progress Progress) (domain.BatchJob, error)
}

// apply folds progress into job.
func apply(job *domain.BatchJob, progress Progress) {
	for _, result := range progress.Results {
		job.Results = append(job.Results, result)
		job.Processed++
		if result.Success {
			job.Succeeded++
		} else {
			job.Failed++
		}
	}
	if progress.Done {
		job.Status = domain.BatchDone
		at := progress.At.UTC()
		if progress.At.IsZero() {
			at = time.Now().UTC()
		}
		job.FinishedAt = &at
	}
}

func cloneJob(job domain.BatchJob) domain.BatchJob {
	job.Integrations = append([]string(nil), job.Integrations...)
	job.Inputs = append([]domain.Subject(nil), job.Inputs...)
	results := make([]domain.BatchResult, len(job.Results))
	for i, result := range job.Results {
		result.Outcomes = append([]domain.LookupOutcome(nil), result.Outcomes...)
		results[i] = result
	}
	job.Results = results
	if job.FinishedAt != nil {
		at := *job.FinishedAt
		job.FinishedAt = &at
	}
	return job
}

// MemoryJobStore keeps jobs in process memory. Finished jobs older than the
// retention are dropped when new jobs are created; zero keeps them forever.
type MemoryJobStore struct {
	mu        sync.Mutex
	jobs      map[string]domain.BatchJob
	retention time.Duration
	now       func() time.Time
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore constructs an in-process job store.
func NewMemoryJobStore(retention time.Duration) *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.BatchJob), retention: retention, now: time.Now}
}

// Create stores a new job.
func (m *MemoryJobStore) Create(ctx context.Context, job domain.BatchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s exists", repository.ErrConflict, job.ID)
	}
	m.prune()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get returns a copy of the job.
func (m *MemoryJobStore) Get(ctx context.Context, id string) (domain.BatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.BatchJob{}, fmt.Errorf("%w: job %s", repository.ErrNotFound, id)
	}
	return cloneJob(job), nil
}

// UpdateProgress applies progress and returns the updated job.
func (m *MemoryJobStore) UpdateProgress(ctx context.Context, id string, progress Progress) (domain.BatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.BatchJob{}, fmt.Errorf("%w: job %s", repository.ErrNotFound, id)
	}
	apply(&job, progress)
	m.jobs[id] = job
	return cloneJob(job), nil
}

func (m *MemoryJobStore) prune() {
	if m.retention <= 0 {
		return
	}
	cutoff := m.now().Add(-m.retention)
	for id, job := range m.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
