package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/schedulus-api/internal/models"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("optimization job not found")
	// ErrJobTerminal is returned when mutating a job that already completed or failed.
	ErrJobTerminal = errors.New("optimization job already finished")
	// ErrJobInFlight is returned by Begin when another job is still running and superseding is not allowed.
	ErrJobInFlight = errors.New("another optimization job is in flight")
	// ErrProgressRegression is returned when an update would lower a job's progress.
	ErrProgressRegression = errors.New("job progress cannot decrease")
)

const defaultJobRetention = 100

type jobEntry struct {
	job    models.OptimizationJob
	done   chan struct{}
	cancel context.CancelFunc
}

// JobStore tracks optimization jobs in memory. It enforces the lifecycle rules: progress never decreases,
// terminal jobs are immutable and reaching a terminal state always means progress 100.
type JobStore struct {
	mu         sync.RWMutex
	jobs       map[string]*jobEntry
	order      []string
	currentID  string
	latestDone string
	retention  int
	now        func() time.Time
}

// NewJobStore keeps at most retention jobs, pruning the oldest finished ones first.
func NewJobStore(retention int) *JobStore {
	if retention <= 0 {
		retention = defaultJobRetention
	}
	return &JobStore{
		jobs:      make(map[string]*jobEntry),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Begin registers a PENDING job and makes it current. When a previous current job is still in flight it is
// returned so the caller can supersede it, unless reject is set in which case ErrJobInFlight is returned.
func (s *JobStore) Begin(job models.OptimizationJob, reject bool) (*models.OptimizationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return nil, errors.New("duplicate optimization job id")
	}

	var previous *models.OptimizationJob
	if current, ok := s.jobs[s.currentID]; ok && !current.job.Status.Terminal() {
		if reject {
			return nil, ErrJobInFlight
		}
		prev := current.job.Clone()
		previous = &prev
	}

	s.jobs[job.ID] = &jobEntry{job: job.Clone(), done: make(chan struct{})}
	s.order = append(s.order, job.ID)
	s.currentID = job.ID
	s.prune()
	return previous, nil
}

// SetCancel records the function that aborts the job's running work.
func (s *JobStore) SetCancel(id string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	entry.cancel = cancel
	return nil
}

// Cancel invokes the job's cancel function if one was registered.
func (s *JobStore) Cancel(id string) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	var cancel context.CancelFunc
	if ok {
		cancel = entry.cancel
	}
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (models.OptimizationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	if !ok {
		return models.OptimizationJob{}, ErrJobNotFound
	}
	return entry.job.Clone(), nil
}

// Current returns the most recently started job.
func (s *JobStore) Current() (models.OptimizationJob, error) {
	return s.Get(s.currentJobID())
}

// LatestCompleted returns the most recently completed job.
func (s *JobStore) LatestCompleted() (models.OptimizationJob, error) {
	s.mu.RLock()
	id := s.latestDone
	s.mu.RUnlock()
	if id == "" {
		return models.OptimizationJob{}, ErrJobNotFound
	}
	return s.Get(id)
}

// LatestCompletedID returns the id of the most recently completed job, or "" when none has completed.
func (s *JobStore) LatestCompletedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestDone
}

// Restore makes previousID current again if id is still current. It undoes Begin when the new job never ran.
func (s *JobStore) Restore(id, previousID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID != id {
		return
	}
	if _, ok := s.jobs[previousID]; ok {
		s.currentID = previousID
	}
}

// Done returns a channel closed once the job reaches a terminal state.
func (s *JobStore) Done(id string) (<-chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return entry.done, nil
}

// List returns jobs newest first.
func (s *JobStore) List() []models.OptimizationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OptimizationJob, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.order[i]].job.Clone())
	}
	return out
}

// Advance moves a non-terminal job to RUNNING with the given progress.
func (s *JobStore) Advance(id string, progress int) (models.OptimizationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.mutable(id)
	if err != nil {
		return models.OptimizationJob{}, err
	}
	if progress < entry.job.Progress {
		return entry.job.Clone(), ErrProgressRegression
	}
	if progress > 99 {
		progress = 99
	}
	entry.job.Status = models.JobStatusRunning
	entry.job.Progress = progress
	return entry.job.Clone(), nil
}

// Complete stores the result and marks the job COMPLETED at progress 100 in one step.
func (s *JobStore) Complete(id string, result models.Timetable) (models.OptimizationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.mutable(id)
	if err != nil {
		return models.OptimizationJob{}, err
	}
	completedAt := s.now()
	entry.job.Status = models.JobStatusCompleted
	entry.job.Progress = 100
	entry.job.CompletedAt = &completedAt
	entry.job.Result = &models.TimetableValue{Timetable: result.Clone()}
	s.latestDone = id
	s.finish(entry)
	return entry.job.Clone(), nil
}

// Fail marks the job FAILED with the message, progress 100 and a completion time.
func (s *JobStore) Fail(id, message string) (models.OptimizationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.mutable(id)
	if err != nil {
		return models.OptimizationJob{}, err
	}
	completedAt := s.now()
	entry.job.Status = models.JobStatusFailed
	entry.job.Progress = 100
	entry.job.CompletedAt = &completedAt
	entry.job.Error = &message
	s.finish(entry)
	return entry.job.Clone(), nil
}

// InFlight reports jobs that have not reached a terminal state.
func (s *JobStore) InFlight() []models.OptimizationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OptimizationJob
	for _, id := range s.order {
		if job := s.jobs[id].job; !job.Status.Terminal() {
			out = append(out, job.Clone())
		}
	}
	return out
}

func (s *JobStore) currentJobID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

func (s *JobStore) mutable(id string) (*jobEntry, error) {
	entry, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if entry.job.Status.Terminal() {
		return nil, ErrJobTerminal
	}
	return entry, nil
}

func (s *JobStore) finish(entry *jobEntry) {
	close(entry.done)
	if entry.cancel != nil {
		entry.cancel()
		entry.cancel = nil
	}
}

// prune drops the oldest terminal jobs beyond the retention limit. The current and latest completed jobs are kept.
func (s *JobStore) prune() {
	for len(s.order) > s.retention {
		removed := false
		for i, id := range s.order {
			entry := s.jobs[id]
			if !entry.job.Status.Terminal() || id == s.currentID || id == s.latestDone {
				continue
			}
			delete(s.jobs, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			removed = true
			break
		}
		if !removed {
			return
		}
	}
}
