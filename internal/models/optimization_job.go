package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures optimization job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// OptimizationJob tracks a single asynchronous optimization run.
type OptimizationJob struct {
	ID          string          `db:"id" json:"id"`
	Status      JobStatus       `db:"status" json:"status"`
	Progress    int             `db:"progress" json:"progress"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	Result      *TimetableValue `db:"result" json:"result,omitempty"`
	Error       *string         `db:"error" json:"error,omitempty"`
}

// Clone copies the job including its result snapshot.
func (j OptimizationJob) Clone() OptimizationJob {
	out := j
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	if j.Result != nil {
		result := TimetableValue{Timetable: j.Result.Timetable.Clone()}
		out.Result = &result
	}
	if j.Error != nil {
		msg := *j.Error
		out.Error = &msg
	}
	return out
}

// TimetableValue stores a timetable as JSONB.
type TimetableValue struct {
	Timetable
}

// MarshalJSON keeps the embedded timetable flat on the wire.
func (v TimetableValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Timetable)
}

// UnmarshalJSON decodes a flat timetable payload.
func (v *TimetableValue) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.Timetable)
}

// Value marshals the timetable to JSON for persistence.
func (v TimetableValue) Value() (driver.Value, error) {
	data, err := json.Marshal(v.Timetable)
	if err != nil {
		return nil, fmt.Errorf("marshal timetable result: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the timetable.
func (v *TimetableValue) Scan(value interface{}) error {
	if value == nil {
		*v = TimetableValue{}
		return nil
	}
	var data []byte
	switch raw := value.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return fmt.Errorf("unsupported type %T for TimetableValue", value)
	}
	if len(data) == 0 {
		*v = TimetableValue{}
		return nil
	}
	if err := json.Unmarshal(data, &v.Timetable); err != nil {
		return fmt.Errorf("unmarshal timetable result: %w", err)
	}
	return nil
}
