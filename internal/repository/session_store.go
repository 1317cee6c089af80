package repository

import (
	"errors"
	"sync"

	"github.com/noah-isme/schedulus-api/internal/models"
)

var (
	// ErrLessonNotFound is returned when a lesson id is unknown to the session.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrDuplicateLesson is returned when adding a lesson whose id already exists.
	ErrDuplicateLesson = errors.New("lesson already exists")
)

// SessionStore owns the working timetable of one server instance: fixed timeslots and rooms plus the
// mutable lesson list with its current assignments. Every accessor hands out deep copies.
type SessionStore struct {
	mu        sync.RWMutex
	timeslots []models.Timeslot
	rooms     []models.Room
	lessons   []models.Lesson
}

// NewSessionStore seeds a session. The inputs are copied.
func NewSessionStore(timeslots []models.Timeslot, rooms []models.Room, lessons []models.Lesson) *SessionStore {
	return &SessionStore{
		timeslots: append([]models.Timeslot(nil), timeslots...),
		rooms:     append([]models.Room(nil), rooms...),
		lessons:   models.CloneLessons(lessons),
	}
}

// Timeslots returns the active timeslot set.
func (s *SessionStore) Timeslots() []models.Timeslot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Timeslot(nil), s.timeslots...)
}

// Rooms returns the active room set.
func (s *SessionStore) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Room(nil), s.rooms...)
}

// Lessons returns every lesson with its assignment.
func (s *SessionStore) Lessons() []models.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.CloneLessons(s.lessons)
	if out == nil {
		out = []models.Lesson{}
	}
	return out
}

// Timetable returns timeslots, rooms and lessons read under one lock. Score is left to the caller.
func (s *SessionStore) Timetable() models.Timetable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lessons := models.CloneLessons(s.lessons)
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return models.Timetable{
		Timeslots: append([]models.Timeslot(nil), s.timeslots...),
		Rooms:     append([]models.Room(nil), s.rooms...),
		Lessons:   lessons,
	}
}

// Lesson looks up a lesson by id.
func (s *SessionStore) Lesson(id string) (models.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Lesson{}, ErrLessonNotFound
	}
	return s.lessons[idx].Clone(), nil
}

// AddLesson appends lessons atomically; either every lesson is stored or none.
func (s *SessionStore) AddLesson(lessons ...models.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(lessons))
	for _, lesson := range lessons {
		if _, dup := seen[lesson.ID]; dup || s.indexOf(lesson.ID) >= 0 {
			return ErrDuplicateLesson
		}
		seen[lesson.ID] = struct{}{}
	}
	for _, lesson := range lessons {
		s.lessons = append(s.lessons, lesson.Clone())
	}
	return nil
}

// RemoveLesson deletes a lesson by id.
func (s *SessionStore) RemoveLesson(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrLessonNotFound
	}
	s.lessons = append(s.lessons[:idx], s.lessons[idx+1:]...)
	return nil
}

// TogglePin flips the pinned flag and returns the updated lesson.
func (s *SessionStore) TogglePin(id string) (models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Lesson{}, ErrLessonNotFound
	}
	s.lessons[idx].Pinned = !s.lessons[idx].Pinned
	return s.lessons[idx].Clone(), nil
}

// ReplaceLessons swaps the whole lesson list.
func (s *SessionStore) ReplaceLessons(lessons []models.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = models.CloneLessons(lessons)
}

// Update runs fn against a copy of the timetable while holding the write lock and stores the lessons it
// returns. Nothing is written when fn fails.
func (s *SessionStore) Update(fn func(models.Timetable) ([]models.Lesson, error)) ([]models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := models.Timetable{
		Timeslots: append([]models.Timeslot(nil), s.timeslots...),
		Rooms:     append([]models.Room(nil), s.rooms...),
		Lessons:   models.CloneLessons(s.lessons),
	}
	lessons, err := fn(snapshot)
	if err != nil {
		return nil, err
	}
	s.lessons = models.CloneLessons(lessons)
	return models.CloneLessons(s.lessons), nil
}

func (s *SessionStore) indexOf(id string) int {
	for i := range s.lessons {
		if s.lessons[i].ID == id {
			return i
		}
	}
	return -1
}
