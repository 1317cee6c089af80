// Package scheduler holds the pure timetable logic: conflict scoring, the greedy
// reassignment heuristic and the difficulty/satisfaction predictor.
package scheduler

import (
	"math"

	"github.com/noah-isme/schedulus-api/internal/models"
)

// AfternoonHour is the first start hour treated as afternoon for difficult lessons.
const AfternoonHour = 14

// DifficultThreshold marks lessons that prefer morning slots.
const DifficultThreshold = 0.8

const afternoonPenalty = 2

// ConflictDimension names the resource two lessons compete for.
type ConflictDimension string

const (
	ConflictRoom         ConflictDimension = "ROOM"
	ConflictTeacher      ConflictDimension = "TEACHER"
	ConflictStudentGroup ConflictDimension = "STUDENT_GROUP"
)

// Conflict is a single violated hard constraint between two lessons sharing a timeslot.
type Conflict struct {
	TimeslotID string            `json:"timeslot_id"`
	LessonA    string            `json:"lesson_a"`
	LessonB    string            `json:"lesson_b"`
	Dimension  ConflictDimension `json:"dimension"`
}

// CalculateScore computes hard and soft scores for the given lessons.
func CalculateScore(lessons []models.Lesson) models.Score {
	score := models.Score{HardScore: -len(Conflicts(lessons))}
	for _, lesson := range lessons {
		score.SoftScore += softScore(lesson)
	}
	return score
}

// Conflicts lists every hard constraint violation. Each pair may contribute up to three entries.
func Conflicts(lessons []models.Lesson) []Conflict {
	var out []Conflict
	for i := 0; i < len(lessons); i++ {
		a := lessons[i]
		if a.Timeslot == nil {
			continue
		}
		for j := i + 1; j < len(lessons); j++ {
			b := lessons[j]
			if b.Timeslot == nil || b.Timeslot.ID != a.Timeslot.ID {
				continue
			}
			if a.Room != nil && b.Room != nil && a.Room.ID == b.Room.ID {
				out = append(out, newConflict(a, b, ConflictRoom))
			}
			if a.Teacher == b.Teacher {
				out = append(out, newConflict(a, b, ConflictTeacher))
			}
			if a.StudentGroup == b.StudentGroup {
				out = append(out, newConflict(a, b, ConflictStudentGroup))
			}
		}
	}
	return out
}

// Snapshot builds a timetable with a freshly computed score.
func Snapshot(timeslots []models.Timeslot, rooms []models.Room, lessons []models.Lesson) models.Timetable {
	score := CalculateScore(lessons)
	return models.Timetable{
		Timeslots: timeslots,
		Rooms:     rooms,
		Lessons:   lessons,
		Score:     &score,
	}
}

func softScore(lesson models.Lesson) int {
	soft := int(math.Round(lesson.SatisfactionScore * 3))
	if lesson.Timeslot != nil && lesson.DifficultyWeight >= DifficultThreshold && lesson.Timeslot.StartHour() >= AfternoonHour {
		soft -= afternoonPenalty
	}
	return soft
}

func newConflict(a, b models.Lesson, dim ConflictDimension) Conflict {
	return Conflict{TimeslotID: a.Timeslot.ID, LessonA: a.ID, LessonB: b.ID, Dimension: dim}
}
