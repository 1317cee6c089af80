package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/jobs"
	"github.com/noah-isme/schedulus-api/pkg/validation"
)

// JobTypeOptimize labels queue jobs produced by OptimizationService.
const JobTypeOptimize = "optimize"

const defaultRoomCapacity = 30

// Concurrency policies for a new job arriving while another is in flight.
const (
	PolicySupersede = "supersede"
	PolicyReject    = "reject"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SessionTimetable is the session state optimization jobs read and write back.
type SessionTimetable interface {
	Timeslots() []models.Timeslot
	Rooms() []models.Room
	Timetable() models.Timetable
	Update(fn func(models.Timetable) ([]models.Lesson, error)) ([]models.Lesson, error)
}

// JobArchive persists finished jobs beyond the in-memory retention window.
type JobArchive interface {
	Save(ctx context.Context, job models.OptimizationJob) error
	GetByID(ctx context.Context, id string) (*models.OptimizationJob, error)
	LatestCompleted(ctx context.Context) (*models.OptimizationJob, error)
}

// OptimizationInput is the queue payload. A nil Lessons slice means the session timetable is optimized.
type OptimizationInput struct {
	Timeslots []models.Timeslot
	Rooms     []models.Room
	Lessons   []models.Lesson
	TimeLimit time.Duration
}

// FromSession reports whether the job works on the session timetable.
func (in OptimizationInput) FromSession() bool {
	return in.Lessons == nil
}

// OptimizationConfig tunes job admission.
type OptimizationConfig struct {
	Policy    string
	TimeLimit time.Duration
}

// OptimizationService admits optimization jobs and answers status queries.
type OptimizationService struct {
	jobs      *repository.JobStore
	session   SessionTimetable
	queue     jobDispatcher
	archive   JobArchive
	predictor *scheduler.Predictor
	validate  *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       OptimizationConfig
}

// NewOptimizationService constructs the service. archive may be nil.
func NewOptimizationService(store *repository.JobStore, session SessionTimetable, queue jobDispatcher, archive JobArchive, predictor *scheduler.Predictor, validate *validator.Validate, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg OptimizationConfig) *OptimizationService {
	if predictor == nil {
		predictor = scheduler.NewPredictor()
	}
	if validate == nil {
		validate = validation.New()
	} else {
		validation.UseJSONNames(validate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy != PolicyReject {
		cfg.Policy = PolicySupersede
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = dto.DefaultSolverTimeLimitSeconds * time.Second
	}
	return &OptimizationService{
		jobs:      store,
		session:   session,
		queue:     queue,
		archive:   archive,
		predictor: predictor,
		validate:  validate,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start registers a PENDING job and hands it to the worker queue.
func (s *OptimizationService) Start(ctx context.Context, req dto.OptimizationRequest) (*models.OptimizationJob, error) {
	input, err := s.buildInput(req)
	if err != nil {
		return nil, err
	}

	job := models.OptimizationJob{
		ID:        uuid.NewString(),
		Status:    models.JobStatusPending,
		StartedAt: time.Now().UTC(),
	}
	previous, err := s.jobs.Begin(job, s.cfg.Policy == PolicyReject)
	if err != nil {
		if errors.Is(err, repository.ErrJobInFlight) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "an optimization job is already running")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register optimization job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeOptimize, Payload: input}); err != nil {
		if failed, failErr := s.jobs.Fail(job.ID, "failed to enqueue job"); failErr == nil {
			s.metrics.ObserveJob(failed)
		}
		if previous != nil {
			s.jobs.Restore(job.ID, previous.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue optimization job")
	}
	// the previous job keeps running until the new one is safely queued
	if previous != nil {
		s.supersede(ctx, previous.ID, job.ID)
	}

	s.logger.Info("optimization job accepted",
		zap.String("job_id", job.ID),
		zap.Bool("session", input.FromSession()),
		zap.Int("lessons", len(input.Lessons)),
		zap.Duration("time_limit", input.TimeLimit),
	)
	return &job, nil
}

// Status returns the job, consulting the archive for jobs no longer held in memory.
func (s *OptimizationService) Status(ctx context.Context, id string) (*models.OptimizationJob, error) {
	job, err := s.jobs.Get(id)
	if err == nil {
		return &job, nil
	}
	if s.archive != nil {
		start := time.Now()
		archived, archiveErr := s.archive.GetByID(ctx, id)
		s.metrics.ObserveDBQuery("job_get", time.Since(start))
		if archiveErr == nil && archived != nil {
			return archived, nil
		}
		if archiveErr != nil && !errors.Is(archiveErr, repository.ErrJobNotFound) {
			s.logger.Warn("job archive lookup failed", zap.String("job_id", id), zap.Error(archiveErr))
		}
	}
	return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "optimization job not found")
}

// Wait blocks until the job is terminal or ctx is done. On ctx expiry the current state is returned with ctx's error.
func (s *OptimizationService) Wait(ctx context.Context, id string) (*models.OptimizationJob, error) {
	done, err := s.jobs.Done(id)
	if err != nil {
		return s.Status(ctx, id)
	}
	select {
	case <-done:
		return s.Status(ctx, id)
	case <-ctx.Done():
		job, statusErr := s.Status(context.Background(), id)
		if statusErr != nil {
			return nil, statusErr
		}
		return job, ctx.Err()
	}
}

// List returns jobs held in memory, newest first.
func (s *OptimizationService) List() []models.OptimizationJob {
	return s.jobs.List()
}

// Latest returns the result of the most recently completed job. The boolean reports a cache hit.
func (s *OptimizationService) Latest(ctx context.Context) (*models.Timetable, bool, error) {
	// Keyed by job id so a fill racing with a newer completion can only write a key nobody reads any more.
	latestID := s.jobs.LatestCompletedID()
	key := cacheKeyLatest + ":archive"
	if latestID != "" {
		key = cacheKeyLatest + ":" + latestID
	}

	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	var result *models.Timetable
	if job, err := s.jobs.Get(latestID); latestID != "" && err == nil && job.Result != nil {
		result = &job.Result.Timetable
	} else if s.archive != nil {
		start := time.Now()
		archived, archiveErr := s.archive.LatestCompleted(ctx)
		s.metrics.ObserveDBQuery("job_latest", time.Since(start))
		switch {
		case archiveErr == nil && archived != nil && archived.Result != nil:
			result = &archived.Result.Timetable
		case archiveErr != nil && !errors.Is(archiveErr, repository.ErrJobNotFound):
			s.logger.Warn("job archive latest lookup failed", zap.Error(archiveErr))
		}
	}
	if result == nil {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no completed timetable yet")
	}
	_ = s.cache.Set(ctx, key, result, 0)
	return result, false, nil
}

// Shutdown fails every job that has not finished. Call it after the queue has stopped.
func (s *OptimizationService) Shutdown(ctx context.Context) {
	for _, job := range s.jobs.InFlight() {
		s.jobs.Cancel(job.ID)
		failed, err := s.jobs.Fail(job.ID, "optimizer shut down")
		if err != nil {
			continue
		}
		s.metrics.ObserveJob(failed)
		archiveJob(ctx, s.archive, s.metrics, s.logger, failed)
	}
}

func (s *OptimizationService) supersede(ctx context.Context, previousID, nextID string) {
	s.jobs.Cancel(previousID)
	failed, err := s.jobs.Fail(previousID, fmt.Sprintf("superseded by job %s", nextID))
	if err != nil {
		return
	}
	s.metrics.ObserveJob(failed)
	archiveJob(ctx, s.archive, s.metrics, s.logger, failed)
	s.logger.Info("optimization job superseded", zap.String("job_id", previousID), zap.String("superseded_by", nextID))
}

func (s *OptimizationService) buildInput(req dto.OptimizationRequest) (OptimizationInput, error) {
	if err := s.validate.Struct(req); err != nil {
		return OptimizationInput{}, validation.Error(err, "")
	}
	input := OptimizationInput{TimeLimit: s.cfg.TimeLimit}
	if req.SolverTimeLimitSeconds > 0 {
		input.TimeLimit = time.Duration(req.SolverTimeLimitSeconds) * time.Second
	}
	if req.UsesSession() {
		return input, nil
	}

	input.Timeslots = s.session.Timeslots()
	if len(req.Timeslots) > 0 {
		input.Timeslots = make([]models.Timeslot, len(req.Timeslots))
		for i, in := range req.Timeslots {
			id := in.ID
			if id == "" {
				id = fmt.Sprintf("ts%d", i)
			}
			input.Timeslots[i] = models.Timeslot{ID: id, DayOfWeek: in.DayOfWeek, StartTime: in.StartTime, EndTime: in.EndTime, PreferenceBonus: in.PreferenceBonus}
		}
	}
	for i, in := range req.Timeslots {
		if err := checkInterval(in.StartTime, in.EndTime); err != nil {
			return OptimizationInput{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("timeslots[%d]: %v", i, err))
		}
	}
	input.Rooms = s.session.Rooms()
	if len(req.Rooms) > 0 {
		input.Rooms = make([]models.Room, len(req.Rooms))
		for i, in := range req.Rooms {
			id := in.ID
			if id == "" {
				id = fmt.Sprintf("room%d", i)
			}
			capacity := in.Capacity
			if capacity == 0 {
				capacity = defaultRoomCapacity
			}
			input.Rooms[i] = models.Room{ID: id, Name: in.Name, Capacity: capacity}
		}
	}

	seen := make(map[string]struct{}, len(req.Lessons))
	input.Lessons = make([]models.Lesson, 0, len(req.Lessons))
	for i, in := range req.Lessons {
		if _, dup := seen[in.ID]; dup {
			return OptimizationInput{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lessons[%d].id %q is duplicated", i, in.ID))
		}
		seen[in.ID] = struct{}{}

		lesson := models.Lesson{ID: in.ID, Subject: in.Subject, Teacher: in.Teacher, StudentGroup: in.StudentGroup, Pinned: in.Pinned}
		if in.DifficultyWeight == nil || in.SatisfactionScore == nil {
			prediction := s.predictor.Predict(in.Subject)
			lesson.DifficultyWeight = prediction.DifficultyWeight
			lesson.SatisfactionScore = prediction.SatisfactionScore
		}
		if in.DifficultyWeight != nil {
			lesson.DifficultyWeight = *in.DifficultyWeight
		}
		if in.SatisfactionScore != nil {
			lesson.SatisfactionScore = *in.SatisfactionScore
		}
		if in.PinnedTimeslotIndex != nil {
			idx := *in.PinnedTimeslotIndex
			if idx >= len(input.Timeslots) {
				return OptimizationInput{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lessons[%d].pinned_timeslot_index %d out of range", i, idx))
			}
			ts := input.Timeslots[idx]
			lesson.Timeslot = &ts
		}
		if in.PinnedRoomIndex != nil {
			idx := *in.PinnedRoomIndex
			if idx >= len(input.Rooms) {
				return OptimizationInput{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lessons[%d].pinned_room_index %d out of range", i, idx))
			}
			room := input.Rooms[idx]
			lesson.Room = &room
		}
		input.Lessons = append(input.Lessons, lesson)
	}
	return input, nil
}

// checkInterval requires a same-day "HH:MM" interval whose end is after its start.
func checkInterval(start, end string) error {
	from, err := time.Parse("15:04", start)
	if err != nil {
		return fmt.Errorf("invalid start_time %q", start)
	}
	to, err := time.Parse("15:04", end)
	if err != nil {
		return fmt.Errorf("invalid end_time %q", end)
	}
	if !to.After(from) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// archiveJob stores a terminal job when an archive is configured. Failures are logged only.
func archiveJob(ctx context.Context, archive JobArchive, metrics *MetricsService, logger *zap.Logger, job models.OptimizationJob) {
	if archive == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	start := time.Now()
	err := archive.Save(saveCtx, job)
	metrics.ObserveDBQuery("job_save", time.Since(start))
	if err != nil {
		logger.Warn("failed to archive optimization job", zap.String("job_id", job.ID), zap.Error(err))
	}
}
