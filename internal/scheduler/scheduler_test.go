package scheduler

import (
	"crypto/md5"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/models"
)

func slot(id, start string) models.Timeslot {
	return models.Timeslot{ID: id, DayOfWeek: models.Monday, StartTime: start, EndTime: "23:59"}
}

func room(id string) models.Room {
	return models.Room{ID: id, Name: id, Capacity: 30}
}

func lesson(id, teacher, group string, ts *models.Timeslot, r *models.Room) models.Lesson {
	return models.Lesson{ID: id, Subject: "S-" + id, Teacher: teacher, StudentGroup: group, Timeslot: ts, Room: r}
}

func ptr[T any](v T) *T { return &v }

func week() ([]models.Timeslot, []models.Room) {
	timeslots := []models.Timeslot{slot("ts1", "08:30"), slot("ts2", "10:15"), slot("ts3", "13:00"), slot("ts4", "14:45"), slot("ts5", "16:30")}
	rooms := []models.Room{room("r1"), room("r2"), room("r3")}
	return timeslots, rooms
}

func TestCalculateScoreNoCollisions(t *testing.T) {
	ts1, ts2 := slot("ts1", "08:30"), slot("ts2", "10:15")
	r1, r2 := room("r1"), room("r2")
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", &ts1, &r1),
		lesson("b", "T2", "G2", &ts1, &r2),
		lesson("c", "T1", "G1", &ts2, &r1),
	}
	score := CalculateScore(lessons)
	assert.Equal(t, 0, score.HardScore)
	assert.True(t, score.Feasible())
}

func TestCalculateScoreSameSlotSameRoom(t *testing.T) {
	ts1 := slot("ts1", "08:30")
	r1 := room("r1")
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", &ts1, &r1),
		lesson("b", "T2", "G2", &ts1, &r1),
	}
	score := CalculateScore(lessons)
	assert.LessOrEqual(t, score.HardScore, -1)
	assert.Equal(t, -1, score.HardScore)
}

func TestCalculateScoreCountsDimensionsIndependently(t *testing.T) {
	ts1 := slot("ts1", "08:30")
	r1 := room("r1")
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", &ts1, &r1),
		lesson("b", "T1", "G1", &ts1, &r1),
	}
	assert.Equal(t, -3, CalculateScore(lessons).HardScore)

	conflicts := Conflicts(lessons)
	require.Len(t, conflicts, 3)
	assert.Equal(t, ConflictRoom, conflicts[0].Dimension)
	assert.Equal(t, ConflictTeacher, conflicts[1].Dimension)
	assert.Equal(t, ConflictStudentGroup, conflicts[2].Dimension)
}

func TestRemovingRoomCollisionImprovesHardScore(t *testing.T) {
	ts1 := slot("ts1", "08:30")
	r1, r2 := room("r1"), room("r2")
	colliding := []models.Lesson{lesson("a", "T1", "G1", &ts1, &r1), lesson("b", "T2", "G2", &ts1, &r1)}
	resolved := []models.Lesson{lesson("a", "T1", "G1", &ts1, &r1), lesson("b", "T2", "G2", &ts1, &r2)}

	assert.LessOrEqual(t, CalculateScore(colliding).HardScore, CalculateScore(resolved).HardScore-1)
}

func TestUnscheduledLessonsNeverCollide(t *testing.T) {
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", nil, nil),
		lesson("b", "T1", "G1", nil, nil),
	}
	lessons[0].SatisfactionScore = 1
	lessons[0].DifficultyWeight = 0.95
	score := CalculateScore(lessons)
	assert.Equal(t, 0, score.HardScore)
	assert.Equal(t, 3, score.SoftScore)
}

func TestRoomCollisionNeedsBothRooms(t *testing.T) {
	ts1 := slot("ts1", "08:30")
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", &ts1, nil),
		lesson("b", "T2", "G2", &ts1, nil),
	}
	assert.Equal(t, 0, CalculateScore(lessons).HardScore)
}

func TestAfternoonPenaltyForDifficultLessons(t *testing.T) {
	afternoon := slot("ts4", "15:00")
	r1 := room("r1")
	hard := lesson("a", "T1", "G1", &afternoon, &r1)
	hard.DifficultyWeight = 0.9
	hard.SatisfactionScore = 0

	assert.Equal(t, -2, CalculateScore([]models.Lesson{hard}).SoftScore)

	morning := slot("ts1", "09:00")
	hard.Timeslot = &morning
	assert.Equal(t, 0, CalculateScore([]models.Lesson{hard}).SoftScore)
}

func TestSatisfactionBonusRounds(t *testing.T) {
	cases := map[float64]int{0: 0, 0.16: 0, 0.17: 1, 0.5: 2, 0.85: 3, 1: 3}
	for satisfaction, want := range cases {
		l := lesson("a", "T", "G", nil, nil)
		l.SatisfactionScore = satisfaction
		assert.Equal(t, want, CalculateScore([]models.Lesson{l}).SoftScore, "satisfaction %v", satisfaction)
	}
}

func TestReassignNeverMovesPinnedLessons(t *testing.T) {
	timeslots, rooms := week()
	rnd := rand.New(rand.NewSource(7))
	for iteration := 0; iteration < 50; iteration++ {
		lessons := make([]models.Lesson, 0, 12)
		for i := 0; i < 12; i++ {
			ts := timeslots[rnd.Intn(len(timeslots))]
			r := rooms[rnd.Intn(len(rooms))]
			l := lesson(fmt.Sprintf("l%d", i), fmt.Sprintf("T%d", i%4), fmt.Sprintf("G%d", i%3), &ts, &r)
			l.DifficultyWeight = rnd.Float64()
			l.Pinned = rnd.Intn(3) == 0
			lessons = append(lessons, l)
		}

		out, err := NewOptimizer(int64(iteration + 1)).Reassign(lessons, timeslots, rooms)
		require.NoError(t, err)
		require.Len(t, out, len(lessons))

		byID := make(map[string]models.Lesson, len(out))
		for _, l := range out {
			byID[l.ID] = l
		}
		for _, original := range lessons {
			if !original.Pinned {
				continue
			}
			got := byID[original.ID]
			assert.Equal(t, original.Timeslot.ID, got.Timeslot.ID)
			assert.Equal(t, original.Room.ID, got.Room.ID)
		}
	}
}

func TestReassignAvoidsPinnedPairsAndOrdersOutput(t *testing.T) {
	timeslots, rooms := week()
	ts1, r1 := timeslots[0], rooms[0]
	pinned := lesson("p", "T0", "G0", &ts1, &r1)
	pinned.Pinned = true

	lessons := []models.Lesson{
		lesson("easy", "T1", "G1", nil, nil),
		pinned,
		lesson("hard", "T2", "G2", nil, nil),
	}
	lessons[0].DifficultyWeight = 0.2
	lessons[2].DifficultyWeight = 0.9

	out, err := NewOptimizer(3).Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "p", out[0].ID)
	assert.Equal(t, "hard", out[1].ID)
	assert.Equal(t, "easy", out[2].ID)

	for _, l := range out[1:] {
		assert.False(t, l.Timeslot.ID == ts1.ID && l.Room.ID == r1.ID, "unpinned lesson took a pinned pair")
		assert.Equal(t, "08:30", l.Timeslot.StartTime, "earliest hour is used first")
	}
}

func TestReassignDoesNotMutateInput(t *testing.T) {
	timeslots, rooms := week()
	ts := timeslots[4]
	r := rooms[2]
	lessons := []models.Lesson{lesson("a", "T", "G", &ts, &r)}

	_, err := NewOptimizer(1).Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	assert.Equal(t, "ts5", lessons[0].Timeslot.ID)
}

func TestReassignWrapsWhenOversubscribed(t *testing.T) {
	timeslots := []models.Timeslot{slot("ts1", "08:30")}
	rooms := []models.Room{room("r1")}
	lessons := []models.Lesson{
		lesson("a", "T1", "G1", nil, nil),
		lesson("b", "T2", "G2", nil, nil),
	}

	out, err := NewOptimizer(1).Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	for _, l := range out {
		assert.Equal(t, "ts1", l.Timeslot.ID)
		assert.Equal(t, "r1", l.Room.ID)
	}
	assert.Equal(t, -1, CalculateScore(out).HardScore)
}

func TestReassignFailsWithoutFreePairs(t *testing.T) {
	timeslots := []models.Timeslot{slot("ts1", "08:30")}
	rooms := []models.Room{room("r1")}
	pinned := lesson("p", "T0", "G0", &timeslots[0], &rooms[0])
	pinned.Pinned = true

	_, err := NewOptimizer(1).Reassign([]models.Lesson{pinned, lesson("a", "T1", "G1", nil, nil)}, timeslots, rooms)
	assert.ErrorIs(t, err, ErrNoAvailableSlots)

	out, err := NewOptimizer(1).Reassign([]models.Lesson{pinned}, timeslots, rooms)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestReassignIsDeterministicForSeed(t *testing.T) {
	timeslots, rooms := week()
	lessons := []models.Lesson{lesson("a", "T1", "G1", nil, nil), lesson("b", "T2", "G2", nil, nil), lesson("c", "T3", "G3", nil, nil)}

	first, err := NewOptimizer(99).Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	second, err := NewOptimizer(99).Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTogglePinThenReassignKeepsPlacement(t *testing.T) {
	timeslots, rooms := week()
	opt := NewOptimizer(5)
	lessons := opt.InitialAssignment([]models.Lesson{
		lesson("a", "T1", "G1", nil, nil),
		lesson("b", "T2", "G2", nil, nil),
		lesson("c", "T3", "G3", nil, nil),
	}, timeslots, rooms)
	lessons[1].Pinned = !lessons[1].Pinned
	before := lessons[1].Clone()

	out, err := opt.Reassign(lessons, timeslots, rooms)
	require.NoError(t, err)
	assert.Equal(t, before.Timeslot, out[0].Timeslot)
	assert.Equal(t, before.Room, out[0].Room)
}

func TestInitialAssignmentCyclesShuffledLists(t *testing.T) {
	timeslots, rooms := week()
	lessons := make([]models.Lesson, 8)
	for i := range lessons {
		lessons[i] = lesson(fmt.Sprintf("l%d", i), "T", "G", nil, nil)
	}

	out := NewOptimizer(11).InitialAssignment(lessons, timeslots, rooms)
	require.Len(t, out, 8)
	for i, l := range out {
		require.True(t, l.Scheduled())
		assert.Equal(t, out[i%len(timeslots)].Timeslot.ID, l.Timeslot.ID)
		assert.Equal(t, out[i%len(rooms)].Room.ID, l.Room.ID)
	}
	assert.False(t, lessons[0].Scheduled(), "input must stay untouched")

	empty := NewOptimizer(11).InitialAssignment(lessons, nil, rooms)
	assert.False(t, empty[0].Scheduled())
}

func TestRandomPlacement(t *testing.T) {
	timeslots, rooms := week()
	ts, r := NewOptimizer(1).RandomPlacement(timeslots, rooms)
	require.NotNil(t, ts)
	require.NotNil(t, r)

	ts, r = NewOptimizer(1).RandomPlacement(nil, rooms)
	assert.Nil(t, ts)
	assert.Nil(t, r)
}

func TestSnapshotRecomputesScore(t *testing.T) {
	timeslots, rooms := week()
	l := lesson("a", "T", "G", ptr(timeslots[0]), ptr(rooms[0]))
	l.SatisfactionScore = 1
	tt := Snapshot(timeslots, rooms, []models.Lesson{l})
	require.NotNil(t, tt.Score)
	assert.Equal(t, models.Score{HardScore: 0, SoftScore: 3}, *tt.Score)
}

func TestPredictorKnownCourse(t *testing.T) {
	p := NewPredictor().Predict(" cs450 ")
	assert.Equal(t, SourceHistorical, p.Source)
	assert.Equal(t, 0.90, p.DifficultyWeight)
	assert.Equal(t, 0.92, p.SatisfactionScore)
	assert.Equal(t, " cs450 ", p.CourseID)
}

func TestPredictorInfersStableValues(t *testing.T) {
	predictor := NewPredictor()
	first := predictor.Predict("Quantum Basket Weaving")
	second := predictor.Predict("quantum basket weaving")
	assert.Equal(t, SourceInferred, first.Source)
	assert.Equal(t, first.DifficultyWeight, second.DifficultyWeight)

	sum := md5.Sum([]byte("QUANTUM BASKET WEAVING"))
	want := math.Round((0.3+(float64(sum[0])+float64(sum[1]))/510*0.65)*1000) / 1000
	assert.Equal(t, want, first.DifficultyWeight)
	assert.GreaterOrEqual(t, first.DifficultyWeight, 0.3)
	assert.LessOrEqual(t, first.DifficultyWeight, 0.95)
	assert.GreaterOrEqual(t, first.SatisfactionScore, 0.4)
	assert.LessOrEqual(t, first.SatisfactionScore, 0.95)
}
