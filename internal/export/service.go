package export

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type jobState struct {
	job    Job
	cancel context.CancelFunc
}

// Service runs export jobs. At most one job is active at a time and
// enqueue requests are spaced by a cooldown; finished archives are removed
// after the retention period.
type Service struct {
	sources   []SourceDir
	outDir    string
	retention time.Duration
	cooldown  time.Duration
	audit     AuditRecorder
	logger    *slog.Logger

	mu          sync.Mutex
	jobs        map[string]*jobState
	lastEnqueue time.Time
}

func NewService(sources []SourceDir, outDir string, retention, cooldown time.Duration, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = NewMemoryAuditRecorder()
	}
	return &Service{
		sources:   sources,
		outDir:    outDir,
		retention: retention,
		cooldown:  cooldown,
		audit:     audit,
		logger:    logger,
		jobs:      map[string]*jobState{},
	}
}

// Enqueue starts a new export job for the requesting actor. A job already
// in flight yields ConflictError with its id; requests inside the cooldown
// window yield RateLimitError.
func (s *Service) Enqueue(actor string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.jobs {
		if !isTerminal(state.job.Status) {
			return Job{}, ConflictError{JobID: state.job.ID.String()}
		}
	}
	if s.cooldown > 0 && !s.lastEnqueue.IsZero() {
		if wait := s.cooldown - time.Since(s.lastEnqueue); wait > 0 {
			return Job{}, RateLimitError{RetryAfter: wait}
		}
	}
	s.lastEnqueue = time.Now()

	id := uuid.New()
	job := Job{
		ID:          id,
		Status:      Queued,
		RequestedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.jobs[id.String()] = &jobState{job: job, cancel: cancel}

	s.audit.Record(actor, "export.enqueue", id.String())
	go s.run(ctx, id.String())
	return job, nil
}

// Get returns the current state of a job.
func (s *Service) Get(jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return state.job, nil
}

// Cancel stops a queued or running job. Finished jobs report ConflictError.
func (s *Service) Cancel(actor, jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	if isTerminal(state.job.Status) {
		return state.job, ConflictError{JobID: jobID}
	}
	state.cancel()
	now := time.Now().UTC()
	state.job.Status = Canceled
	state.job.FinishedAt = &now
	s.audit.Record(actor, "export.cancel", jobID)
	return state.job, nil
}

// ArchivePath returns the archive location of a succeeded job.
func (s *Service) ArchivePath(jobID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok || state.job.Result == nil {
		return "", ErrNotFound
	}
	return state.job.Result.ArchivePath, nil
}

func (s *Service) run(ctx context.Context, jobID string) {
	start := time.Now().UTC()
	s.update(jobID, func(job *Job) {
		job.Status = Running
		job.StartedAt = &start
		job.Progress = 10
	})

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		s.fail(jobID, err)
		return
	}
	dest := filepath.Join(s.outDir, jobID+".zip")
	count, err := buildArchive(ctx, dest, s.sources)
	if err != nil {
		os.Remove(dest)
		if ctx.Err() != nil {
			// Canceled while building; Cancel already set the final state.
			return
		}
		s.fail(jobID, err)
		return
	}
	s.update(jobID, func(job *Job) { job.Progress = 90 })

	info, err := os.Stat(dest)
	if err != nil {
		s.fail(jobID, err)
		return
	}
	now := time.Now().UTC()
	expires := now.Add(s.retention)
	s.update(jobID, func(job *Job) {
		job.Status = Succeeded
		job.Progress = 100
		job.FinishedAt = &now
		job.Result = &Result{
			ArchivePath: dest,
			Size:        info.Size(),
			Ledgers:     count,
			ExpiresAt:   expires,
		}
	})
	s.logger.Info("ledger export finished", "jobId", jobID, "ledgers", count, "bytes", info.Size())

	time.AfterFunc(s.retention, func() {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("archive cleanup failed", "jobId", jobID, "error", err)
		}
	})
}

func (s *Service) fail(jobID string, err error) {
	now := time.Now().UTC()
	s.update(jobID, func(job *Job) {
		job.Status = Failed
		job.FinishedAt = &now
		job.ErrMessage = err.Error()
	})
	s.logger.Error("ledger export failed", "jobId", jobID, "error", err)
}

func (s *Service) update(jobID string, mutate func(job *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if isTerminal(state.job.Status) {
		return
	}
	mutate(&state.job)
}

// Audit returns the export audit trail.
func (s *Service) Audit() []AuditEntry {
	return s.audit.Entries()
}
