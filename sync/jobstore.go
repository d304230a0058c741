package sync

import (
	"context"
	"sync"
	"time"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformerr"
)

// JobStore persists SyncJobs and enforces "at most one non-terminal job per
// (seller, job_kind)" (§4.8). Implementations must make Create atomic with
// that check.
type JobStore interface {
	Create(ctx context.Context, job domain.SyncJob) error
	Get(ctx context.Context, jobID string) (domain.SyncJob, error)
	Update(ctx context.Context, job domain.SyncJob) error
	Checkpoint(ctx context.Context, jobID string, cp domain.Checkpoint, progress domain.Progress) error
	ActiveJobFor(ctx context.Context, seller domain.SellerID, kind domain.JobKind) (*domain.SyncJob, error)
}

// MemoryJobStore is an in-process JobStore used by tests and the reference
// CLI.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.SyncJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.SyncJob)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job domain.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.SellerID == job.SellerID && existing.Kind == job.Kind && !existing.State.IsTerminal() {
			return platformerr.New("jobstore.Create", platformerr.Conflict,
				"a non-terminal job of this kind already exists for this seller").
				WithContext(map[string]interface{}{"seller_id": job.SellerID, "job_kind": job.Kind, "existing_job_id": existing.JobID})
		}
	}

	s.jobs[job.JobID] = job
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, jobID string) (domain.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.SyncJob{}, platformerr.New("jobstore.Get", platformerr.NotFound, "job not found").
			WithContext(map[string]interface{}{"job_id": jobID})
	}
	return job, nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job domain.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.UpdatedAt = time.Now()
	s.jobs[job.JobID] = job
	return nil
}

// Checkpoint persists the durable resume point and running progress totals
// atomically, so a restart after a crash mid-job resumes from the last
// completed task rather than redoing it (§4.8).
func (s *MemoryJobStore) Checkpoint(ctx context.Context, jobID string, cp domain.Checkpoint, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return platformerr.New("jobstore.Checkpoint", platformerr.NotFound, "job not found").
			WithContext(map[string]interface{}{"job_id": jobID})
	}
	job.Checkpoint = cp
	job.Progress = progress
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *MemoryJobStore) ActiveJobFor(ctx context.Context, seller domain.SellerID, kind domain.JobKind) (*domain.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.SellerID == seller && job.Kind == kind && !job.State.IsTerminal() {
			cp := job
			return &cp, nil
		}
	}
	return nil, nil
}

var _ JobStore = (*MemoryJobStore)(nil)
