package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiranshivaraju/videolens/pkg/models"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrInvalidStepIndex = errors.New("invalid step index")
)

// Store is the job data access interface. Implementations must be safe for
// concurrent use: readers never observe a partially applied mutation.
type Store interface {
	Create(id string) (*models.Job, error)
	Get(id string) (*models.Job, error)
	Update(id string, fn func(*models.Job)) (*models.Job, error)
	SetStep(id string, index int, status models.StepStatus, progress float64, message string) (*models.Job, error)
	Len() int
}

// MemoryStore keeps jobs for the lifetime of the process. Jobs are never
// evicted, so memory grows with the number of submissions.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*models.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new job with three pending steps in the uploading state.
func (s *MemoryStore) Create(id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, fmt.Errorf("create job %s: %w", id, ErrDuplicateKey)
	}
	job := models.NewJob(id, s.now())
	s.jobs[id] = job
	return job.Clone(), nil
}

// Get returns a snapshot of the job.
func (s *MemoryStore) Get(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies fn to the job under the write lock and returns the resulting
// snapshot. fn must not retain the pointer it is given.
func (s *MemoryStore) Update(id string, fn func(*models.Job)) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(job)
	job.State.Recompute()
	job.State.Timestamp = s.now()
	return job.Clone(), nil
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

var _ Store = (*MemoryStore)(nil)
