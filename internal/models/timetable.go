package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DayOfWeek names a teaching day.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayOrder = map[DayOfWeek]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
	Sunday:    7,
}

// Valid reports whether the day is one of the known weekday values.
func (d DayOfWeek) Valid() bool {
	_, ok := dayOrder[d]
	return ok
}

// Index returns 1 for Monday through 7 for Sunday, 0 when unknown.
func (d DayOfWeek) Index() int {
	return dayOrder[d]
}

// ParseDayOfWeek normalises user supplied day names.
func ParseDayOfWeek(raw string) (DayOfWeek, error) {
	day := DayOfWeek(strings.ToUpper(strings.TrimSpace(raw)))
	if !day.Valid() {
		return "", fmt.Errorf("unknown day of week %q", raw)
	}
	return day, nil
}

// Timeslot is a fixed same-day interval lessons can be scheduled into.
type Timeslot struct {
	ID              string    `json:"id" yaml:"id"`
	DayOfWeek       DayOfWeek `json:"day_of_week" yaml:"day_of_week"`
	StartTime       string    `json:"start_time" yaml:"start_time"`
	EndTime         string    `json:"end_time" yaml:"end_time"`
	PreferenceBonus *float64  `json:"preference_bonus,omitempty" yaml:"preference_bonus,omitempty"`
}

// StartHour returns the wall-clock hour of StartTime ("HH:MM"), 0 when unparsable.
func (t Timeslot) StartHour() int {
	hour, _ := parseHour(t.StartTime)
	return hour
}

// Label renders the slot for tables and exports.
func (t Timeslot) Label() string {
	return fmt.Sprintf("%s %s-%s", t.DayOfWeek, t.StartTime, t.EndTime)
}

func parseHour(raw string) (int, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(raw), ":")
	hour, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("parse hour from %q: %w", raw, err)
	}
	return hour, nil
}

// Room is a bookable teaching space.
type Room struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}

// Lesson is a single teaching unit that may be assigned to a timeslot and room.
type Lesson struct {
	ID                string    `json:"id" yaml:"id"`
	Subject           string    `json:"subject" yaml:"subject"`
	Teacher           string    `json:"teacher" yaml:"teacher"`
	StudentGroup      string    `json:"student_group" yaml:"student_group"`
	Timeslot          *Timeslot `json:"timeslot,omitempty" yaml:"timeslot,omitempty"`
	Room              *Room     `json:"room,omitempty" yaml:"room,omitempty"`
	DifficultyWeight  float64   `json:"difficulty_weight" yaml:"difficulty_weight"`
	SatisfactionScore float64   `json:"satisfaction_score" yaml:"satisfaction_score"`
	Pinned            bool      `json:"pinned" yaml:"pinned"`
}

// Scheduled reports whether the lesson holds both a timeslot and a room.
func (l Lesson) Scheduled() bool {
	return l.Timeslot != nil && l.Room != nil
}

// Clone returns a deep copy so callers never share assignment pointers.
func (l Lesson) Clone() Lesson {
	out := l
	if l.Timeslot != nil {
		ts := *l.Timeslot
		if l.Timeslot.PreferenceBonus != nil {
			bonus := *l.Timeslot.PreferenceBonus
			ts.PreferenceBonus = &bonus
		}
		out.Timeslot = &ts
	}
	if l.Room != nil {
		room := *l.Room
		out.Room = &room
	}
	return out
}

// CloneLessons deep-copies a lesson slice.
func CloneLessons(lessons []Lesson) []Lesson {
	if lessons == nil {
		return nil
	}
	out := make([]Lesson, len(lessons))
	for i, lesson := range lessons {
		out[i] = lesson.Clone()
	}
	return out
}

// Score aggregates hard and soft constraint outcomes.
type Score struct {
	HardScore int `json:"hard_score"`
	SoftScore int `json:"soft_score"`
}

// Feasible is true when no hard constraint is violated.
func (s Score) Feasible() bool {
	return s.HardScore == 0
}

// String renders the score in the solver's "0hard/12soft" notation.
func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dsoft", s.HardScore, s.SoftScore)
}

// Timetable is a point-in-time snapshot of the schedule.
type Timetable struct {
	Timeslots []Timeslot `json:"timeslots"`
	Rooms     []Room     `json:"rooms"`
	Lessons   []Lesson   `json:"lessons"`
	Score     *Score     `json:"score,omitempty"`
}

// Clone deep-copies the timetable.
func (t Timetable) Clone() Timetable {
	out := Timetable{
		Timeslots: append([]Timeslot(nil), t.Timeslots...),
		Rooms:     append([]Room(nil), t.Rooms...),
		Lessons:   CloneLessons(t.Lessons),
	}
	if t.Score != nil {
		score := *t.Score
		out.Score = &score
	}
	return out
}

// Validate reports the first lesson whose assignment lies outside the active timeslot/room sets.
func (t Timetable) Validate() error {
	timeslots := make(map[string]struct{}, len(t.Timeslots))
	for _, ts := range t.Timeslots {
		timeslots[ts.ID] = struct{}{}
	}
	rooms := make(map[string]struct{}, len(t.Rooms))
	for _, room := range t.Rooms {
		rooms[room.ID] = struct{}{}
	}
	for _, lesson := range t.Lessons {
		if lesson.Timeslot != nil {
			if _, ok := timeslots[lesson.Timeslot.ID]; !ok {
				return fmt.Errorf("lesson %s references unknown timeslot %s", lesson.ID, lesson.Timeslot.ID)
			}
		}
		if lesson.Room != nil {
			if _, ok := rooms[lesson.Room.ID]; !ok {
				return fmt.Errorf("lesson %s references unknown room %s", lesson.ID, lesson.Room.ID)
			}
		}
	}
	return nil
}
