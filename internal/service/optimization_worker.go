package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	"github.com/noah-isme/schedulus-api/pkg/jobs"
)

// runningProgress is the progress reported by each RUNNING tick. The final tick completes the job.
var runningProgress = []int{10, 30, 50, 70, 90}

var errJobGone = errors.New("optimization job no longer active")

// OptimizationWorker simulates a solver run for each queued job: a fixed series of progress ticks followed by
// one pass of the reassignment heuristic.
type OptimizationWorker struct {
	jobs      *repository.JobStore
	session   SessionTimetable
	optimizer *scheduler.Optimizer
	archive   JobArchive
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	delays    []time.Duration
}

// NewOptimizationWorker constructs a worker. delays holds one entry per tick; missing entries repeat the last one.
func NewOptimizationWorker(store *repository.JobStore, session SessionTimetable, optimizer *scheduler.Optimizer, archive JobArchive, cache *CacheService, metrics *MetricsService, delays []time.Duration, logger *zap.Logger) *OptimizationWorker {
	if optimizer == nil {
		optimizer = scheduler.NewOptimizer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OptimizationWorker{
		jobs:      store,
		session:   session,
		optimizer: optimizer,
		archive:   archive,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		delays:    append([]time.Duration(nil), delays...),
	}
}

// Handle processes a queue job. Every failure is recorded on the job, so errors returned here are permanent.
func (w *OptimizationWorker) Handle(ctx context.Context, job jobs.Job) error {
	input, ok := job.Payload.(OptimizationInput)
	if !ok {
		err := fmt.Errorf("unexpected payload %T", job.Payload)
		w.fail(ctx, job.ID, err.Error())
		return jobs.Permanent(err)
	}
	record, err := w.jobs.Get(job.ID)
	if err != nil {
		return jobs.Permanent(err)
	}
	if record.Status.Terminal() {
		return nil
	}

	timeLimit := input.TimeLimit
	if timeLimit <= 0 {
		timeLimit = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()
	if err := w.jobs.SetCancel(job.ID, cancel); err != nil {
		return jobs.Permanent(err)
	}

	for i, progress := range runningProgress {
		if err := sleepCtx(runCtx, w.delay(i)); err != nil {
			return w.abort(ctx, runCtx, job.ID, timeLimit)
		}
		if _, err := w.jobs.Advance(job.ID, progress); err != nil {
			if errors.Is(err, repository.ErrJobTerminal) {
				return nil
			}
			return jobs.Permanent(err)
		}
	}
	if err := sleepCtx(runCtx, w.delay(len(runningProgress))); err != nil {
		return w.abort(ctx, runCtx, job.ID, timeLimit)
	}

	completed, err := w.complete(job.ID, input)
	if err != nil {
		if errors.Is(err, errJobGone) {
			return nil
		}
		w.fail(ctx, job.ID, err.Error())
		return jobs.Permanent(err)
	}

	w.metrics.ObserveJob(completed)
	if input.FromSession() {
		w.metrics.SetLessonCount(len(completed.Result.Lessons))
	}
	w.cache.InvalidateTimetable(ctx)
	archiveJob(ctx, w.archive, w.metrics, w.logger, completed)
	w.logger.Info("optimization job completed",
		zap.String("job_id", job.ID),
		zap.String("score", completed.Result.Score.String()),
		zap.Int("lessons", len(completed.Result.Lessons)),
	)
	return nil
}

// complete runs the heuristic once and stores the result. Session jobs write the new assignments back under
// the session lock so the session and the job result never diverge.
func (w *OptimizationWorker) complete(id string, input OptimizationInput) (models.OptimizationJob, error) {
	var completed models.OptimizationJob
	finish := func(timeslots []models.Timeslot, rooms []models.Room, lessons []models.Lesson) ([]models.Lesson, error) {
		reassigned, err := w.optimizer.Reassign(lessons, timeslots, rooms)
		if err != nil {
			return nil, err
		}
		job, err := w.jobs.Complete(id, scheduler.Snapshot(timeslots, rooms, reassigned))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errJobGone, err)
		}
		completed = job
		return reassigned, nil
	}

	if input.FromSession() {
		_, err := w.session.Update(func(tt models.Timetable) ([]models.Lesson, error) {
			return finish(tt.Timeslots, tt.Rooms, tt.Lessons)
		})
		return completed, err
	}
	_, err := finish(input.Timeslots, input.Rooms, input.Lessons)
	return completed, err
}

func (w *OptimizationWorker) abort(ctx, runCtx context.Context, id string, timeLimit time.Duration) error {
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("solver time limit of %s exceeded", timeLimit)
		w.fail(ctx, id, msg)
		return jobs.Permanent(errors.New(msg))
	case ctx.Err() != nil:
		w.fail(ctx, id, "optimizer shut down")
		return nil
	default:
		// cancelled by a superseding job, which already recorded the failure
		return nil
	}
}

func (w *OptimizationWorker) fail(ctx context.Context, id, message string) {
	failed, err := w.jobs.Fail(id, message)
	if err != nil {
		return
	}
	w.metrics.ObserveJob(failed)
	archiveJob(ctx, w.archive, w.metrics, w.logger, failed)
	w.logger.Warn("optimization job failed", zap.String("job_id", id), zap.String("error", message))
}

func (w *OptimizationWorker) delay(tick int) time.Duration {
	if len(w.delays) == 0 {
		return 0
	}
	if tick < len(w.delays) {
		return w.delays[tick]
	}
	return w.delays[len(w.delays)-1]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
