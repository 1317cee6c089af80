// Package seed loads the static timeslots and rooms and the initial lessons for a session.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/schedulus-api/internal/models"
)

//go:embed default.yaml
var defaultDataset []byte

// Dataset is the on-disk shape of a seed file.
type Dataset struct {
	Timeslots []models.Timeslot `yaml:"timeslots"`
	Rooms     []models.Room     `yaml:"rooms"`
	Lessons   []models.Lesson   `yaml:"lessons"`
}

// Default returns the built-in teaching week.
func Default() (*Dataset, error) {
	return Parse(defaultDataset)
}

// Load reads path, falling back to the built-in dataset when path is empty.
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML dataset.
func Parse(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode seed dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks ids, days, clock times, capacities and weight ranges.
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{})
	for _, ts := range d.Timeslots {
		if ts.ID == "" {
			return fmt.Errorf("timeslot without id")
		}
		if _, dup := seen["ts:"+ts.ID]; dup {
			return fmt.Errorf("duplicate timeslot id %s", ts.ID)
		}
		seen["ts:"+ts.ID] = struct{}{}
		if !ts.DayOfWeek.Valid() {
			return fmt.Errorf("timeslot %s: unknown day %q", ts.ID, ts.DayOfWeek)
		}
		start, err := time.Parse("15:04", ts.StartTime)
		if err != nil {
			return fmt.Errorf("timeslot %s: invalid start_time %q", ts.ID, ts.StartTime)
		}
		end, err := time.Parse("15:04", ts.EndTime)
		if err != nil {
			return fmt.Errorf("timeslot %s: invalid end_time %q", ts.ID, ts.EndTime)
		}
		if !end.After(start) {
			return fmt.Errorf("timeslot %s: end_time must be after start_time", ts.ID)
		}
	}
	for _, room := range d.Rooms {
		if room.ID == "" {
			return fmt.Errorf("room without id")
		}
		if _, dup := seen["room:"+room.ID]; dup {
			return fmt.Errorf("duplicate room id %s", room.ID)
		}
		seen["room:"+room.ID] = struct{}{}
		if room.Capacity <= 0 {
			return fmt.Errorf("room %s: capacity must be positive", room.ID)
		}
	}
	for _, lesson := range d.Lessons {
		if lesson.ID == "" || lesson.Subject == "" || lesson.Teacher == "" || lesson.StudentGroup == "" {
			return fmt.Errorf("lesson %q: id, subject, teacher and student_group are required", lesson.ID)
		}
		if _, dup := seen["lesson:"+lesson.ID]; dup {
			return fmt.Errorf("duplicate lesson id %s", lesson.ID)
		}
		seen["lesson:"+lesson.ID] = struct{}{}
		if lesson.DifficultyWeight < 0 || lesson.DifficultyWeight > 1 || lesson.SatisfactionScore < 0 || lesson.SatisfactionScore > 1 {
			return fmt.Errorf("lesson %s: weights must lie in [0,1]", lesson.ID)
		}
	}
	tt := models.Timetable{Timeslots: d.Timeslots, Rooms: d.Rooms, Lessons: d.Lessons}
	return tt.Validate()
}
