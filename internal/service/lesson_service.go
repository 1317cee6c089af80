package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/dto"
	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/repository"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/export"
	"github.com/noah-isme/schedulus-api/pkg/spreadsheet"
	"github.com/noah-isme/schedulus-api/pkg/validation"
)

// LessonStore is the slice of the session store the lesson service needs.
type LessonStore interface {
	Timeslots() []models.Timeslot
	Rooms() []models.Room
	Lessons() []models.Lesson
	AddLesson(lessons ...models.Lesson) error
	RemoveLesson(id string) error
	TogglePin(id string) (models.Lesson, error)
}

// LessonService manages the lessons of the session timetable.
type LessonService struct {
	store     LessonStore
	optimizer *scheduler.Optimizer
	predictor *scheduler.Predictor
	validate  *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLessonService constructs the service.
func NewLessonService(store LessonStore, optimizer *scheduler.Optimizer, predictor *scheduler.Predictor, validate *validator.Validate, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LessonService {
	if optimizer == nil {
		optimizer = scheduler.NewOptimizer(0)
	}
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
	return &LessonService{
		store:     store,
		optimizer: optimizer,
		predictor: predictor,
		validate:  validate,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// List returns every lesson. The boolean reports a cache hit.
func (s *LessonService) List(ctx context.Context) ([]models.Lesson, bool, error) {
	var cached []models.Lesson
	if hit, _ := s.cache.Get(ctx, cacheKeyLessons, &cached); hit {
		return cached, true, nil
	}
	lessons := s.store.Lessons()
	_ = s.cache.Set(ctx, cacheKeyLessons, lessons, 0)
	return lessons, false, nil
}

// Add validates the request, fills missing weights from the predictor and places the lesson at random.
func (s *LessonService) Add(ctx context.Context, req dto.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validation.Error(err, "")
	}
	lesson := s.build(uuid.NewString(), req)
	if err := s.store.AddLesson(lesson); err != nil {
		return nil, s.storeError(err)
	}
	s.afterMutation(ctx)
	s.logger.Info("lesson added", zap.String("lesson_id", lesson.ID), zap.String("subject", lesson.Subject))
	return &lesson, nil
}

// Remove deletes a lesson.
func (s *LessonService) Remove(ctx context.Context, id string) error {
	if err := s.store.RemoveLesson(id); err != nil {
		return s.storeError(err)
	}
	s.afterMutation(ctx)
	s.logger.Info("lesson removed", zap.String("lesson_id", id))
	return nil
}

// TogglePin flips the pinned flag of a lesson.
func (s *LessonService) TogglePin(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.store.TogglePin(id)
	if err != nil {
		return nil, s.storeError(err)
	}
	s.afterMutation(ctx)
	return &lesson, nil
}

// Import parses a CSV or XLSX upload and adds every row. Nothing is stored when any row is invalid.
func (s *LessonService) Import(ctx context.Context, filename string, r io.Reader) ([]models.Lesson, error) {
	rows, err := spreadsheet.Parse(filename, r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file contains no lessons")
	}

	lessons := make([]models.Lesson, 0, len(rows))
	for _, row := range rows {
		req := dto.CreateLessonRequest{
			Subject:           row.Subject,
			Teacher:           row.Teacher,
			StudentGroup:      row.StudentGroup,
			DifficultyWeight:  row.DifficultyWeight,
			SatisfactionScore: row.SatisfactionScore,
			Pinned:            row.Pinned,
		}
		if err := s.validate.Struct(req); err != nil {
			return nil, validation.Error(err, fmt.Sprintf("row %d:", row.Row))
		}
		id := row.ID
		if id == "" {
			id = uuid.NewString()
		}
		lessons = append(lessons, s.build(id, req))
	}

	if err := s.store.AddLesson(lessons...); err != nil {
		return nil, s.storeError(err)
	}
	s.afterMutation(ctx)
	s.logger.Info("lessons imported", zap.String("file", filename), zap.Int("count", len(lessons)))
	return lessons, nil
}

// ExportCSV renders the lessons with the same columns Import accepts.
func (s *LessonService) ExportCSV(ctx context.Context) ([]byte, error) {
	lessons, _, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Title: "Lessons", Headers: spreadsheet.Headers}
	for _, lesson := range lessons {
		dataset.Rows = append(dataset.Rows, map[string]string{
			spreadsheet.ColumnID:                lesson.ID,
			spreadsheet.ColumnSubject:           lesson.Subject,
			spreadsheet.ColumnTeacher:           lesson.Teacher,
			spreadsheet.ColumnStudentGroup:      lesson.StudentGroup,
			spreadsheet.ColumnDifficultyWeight:  strconv.FormatFloat(lesson.DifficultyWeight, 'f', -1, 64),
			spreadsheet.ColumnSatisfactionScore: strconv.FormatFloat(lesson.SatisfactionScore, 'f', -1, 64),
			spreadsheet.ColumnPinned:            strconv.FormatBool(lesson.Pinned),
		})
	}
	return export.NewCSVExporter().Render(dataset)
}

func (s *LessonService) build(id string, req dto.CreateLessonRequest) models.Lesson {
	lesson := models.Lesson{
		ID:           id,
		Subject:      req.Subject,
		Teacher:      req.Teacher,
		StudentGroup: req.StudentGroup,
		Pinned:       req.Pinned,
	}
	if req.DifficultyWeight == nil || req.SatisfactionScore == nil {
		prediction := s.predictor.Predict(req.Subject)
		lesson.DifficultyWeight = prediction.DifficultyWeight
		lesson.SatisfactionScore = prediction.SatisfactionScore
	}
	if req.DifficultyWeight != nil {
		lesson.DifficultyWeight = *req.DifficultyWeight
	}
	if req.SatisfactionScore != nil {
		lesson.SatisfactionScore = *req.SatisfactionScore
	}
	lesson.Timeslot, lesson.Room = s.optimizer.RandomPlacement(s.store.Timeslots(), s.store.Rooms())
	return lesson
}

func (s *LessonService) afterMutation(ctx context.Context) {
	s.cache.InvalidateTimetable(ctx)
	s.metrics.SetLessonCount(len(s.store.Lessons()))
}

func (s *LessonService) storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrLessonNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "lesson not found")
	case errors.Is(err, repository.ErrDuplicateLesson):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "lesson id already exists")
	default:
		return appErrors.FromError(err)
	}
}
