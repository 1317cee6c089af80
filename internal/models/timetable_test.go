package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonCloneIsDeep(t *testing.T) {
	bonus := 0.9
	original := Lesson{
		ID:       "l1",
		Timeslot: &Timeslot{ID: "ts1", StartTime: "08:30", PreferenceBonus: &bonus},
		Room:     &Room{ID: "room1"},
	}
	clone := original.Clone()
	clone.Timeslot.ID = "ts2"
	*clone.Timeslot.PreferenceBonus = 0.1
	clone.Room.ID = "room2"

	assert.Equal(t, "ts1", original.Timeslot.ID)
	assert.Equal(t, 0.9, *original.Timeslot.PreferenceBonus)
	assert.Equal(t, "room1", original.Room.ID)
}

func TestTimeslotStartHour(t *testing.T) {
	assert.Equal(t, 14, Timeslot{StartTime: "14:45"}.StartHour())
	assert.Equal(t, 8, Timeslot{StartTime: "08:30"}.StartHour())
	assert.Equal(t, 0, Timeslot{StartTime: "later"}.StartHour())
}

func TestParseDayOfWeek(t *testing.T) {
	day, err := ParseDayOfWeek(" monday ")
	require.NoError(t, err)
	assert.Equal(t, Monday, day)
	assert.Equal(t, 1, day.Index())

	_, err = ParseDayOfWeek("someday")
	assert.Error(t, err)
}

func TestTimetableValidate(t *testing.T) {
	tt := Timetable{
		Timeslots: []Timeslot{{ID: "ts1"}},
		Rooms:     []Room{{ID: "room1"}},
		Lessons:   []Lesson{{ID: "l1", Timeslot: &Timeslot{ID: "ts1"}, Room: &Room{ID: "room1"}}, {ID: "l2"}},
	}
	require.NoError(t, tt.Validate())

	tt.Lessons[1].Room = &Room{ID: "room9"}
	assert.ErrorContains(t, tt.Validate(), "room9")
}

func TestScoreString(t *testing.T) {
	assert.Equal(t, "-2hard/14soft", Score{HardScore: -2, SoftScore: 14}.String())
	assert.False(t, Score{HardScore: -2}.Feasible())
}

func TestTimetableValueRoundTripsThroughDriver(t *testing.T) {
	value := TimetableValue{Timetable: Timetable{
		Lessons: []Lesson{{ID: "l1", Subject: "Algorithms", StudentGroup: "CS-2"}},
		Score:   &Score{HardScore: 0, SoftScore: 2},
	}}
	raw, err := value.Value()
	require.NoError(t, err)

	var scanned TimetableValue
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, "CS-2", scanned.Lessons[0].StudentGroup)
	assert.Equal(t, 2, scanned.Score.SoftScore)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned.Lessons)
	assert.Error(t, scanned.Scan(42))
}

func TestOptimizationJobJSONShape(t *testing.T) {
	completed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	job := OptimizationJob{
		ID:          "job-1",
		Status:      JobStatusCompleted,
		Progress:    100,
		StartedAt:   completed.Add(-2 * time.Second),
		CompletedAt: &completed,
		Result:      &TimetableValue{Timetable: Timetable{Lessons: []Lesson{}}},
	}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "COMPLETED", decoded["status"])
	assert.Contains(t, decoded, "completed_at")
	assert.NotContains(t, decoded, "error")
	result := decoded["result"].(map[string]interface{})
	assert.Contains(t, result, "lessons")
	assert.True(t, job.Status.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
}
