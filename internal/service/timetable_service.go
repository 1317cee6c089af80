package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/schedulus-api/internal/models"
	"github.com/noah-isme/schedulus-api/internal/scheduler"
)

// TimetableReader exposes the session timetable.
type TimetableReader interface {
	Timeslots() []models.Timeslot
	Rooms() []models.Room
	Timetable() models.Timetable
}

// TimetableService serves read access to the session timetable.
type TimetableService struct {
	session TimetableReader
	cache   *CacheService
	logger  *zap.Logger
}

// NewTimetableService constructs the service.
func NewTimetableService(session TimetableReader, cache *CacheService, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{session: session, cache: cache, logger: logger}
}

// Current returns the session timetable scored as it stands. The boolean reports a cache hit.
func (s *TimetableService) Current(ctx context.Context) (*models.Timetable, bool, error) {
	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, cacheKeyCurrent, &cached); hit {
		return &cached, true, nil
	}
	tt := s.session.Timetable()
	current := scheduler.Snapshot(tt.Timeslots, tt.Rooms, tt.Lessons)
	_ = s.cache.Set(ctx, cacheKeyCurrent, current, 0)
	return &current, false, nil
}

// Conflicts lists hard constraint violations of the session timetable.
func (s *TimetableService) Conflicts() []scheduler.Conflict {
	conflicts := scheduler.Conflicts(s.session.Timetable().Lessons)
	if conflicts == nil {
		conflicts = []scheduler.Conflict{}
	}
	return conflicts
}

// Timeslots returns the fixed timeslot set.
func (s *TimetableService) Timeslots() []models.Timeslot {
	return s.session.Timeslots()
}

// Rooms returns the fixed room set.
func (s *TimetableService) Rooms() []models.Room {
	return s.session.Rooms()
}
