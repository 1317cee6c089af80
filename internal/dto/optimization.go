package dto

import "github.com/noah-isme/schedulus-api/internal/models"

// DefaultSolverTimeLimitSeconds applies when the request omits a time limit.
const DefaultSolverTimeLimitSeconds = 30

// TimeslotInput describes a timeslot submitted with an optimization request.
type TimeslotInput struct {
	ID              string           `json:"id,omitempty"`
	DayOfWeek       models.DayOfWeek `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime       string           `json:"start_time" validate:"required,datetime=15:04"`
	EndTime         string           `json:"end_time" validate:"required,datetime=15:04"`
	PreferenceBonus *float64         `json:"preference_bonus,omitempty"`
}

// RoomInput describes a room submitted with an optimization request.
type RoomInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"omitempty,min=1"`
}

// LessonInput carries a lesson plus optional pin hints indexing into the request's timeslots and rooms.
type LessonInput struct {
	ID                  string   `json:"id" validate:"required"`
	Subject             string   `json:"subject" validate:"required"`
	Teacher             string   `json:"teacher" validate:"required"`
	StudentGroup        string   `json:"student_group" validate:"required"`
	DifficultyWeight    *float64 `json:"difficulty_weight,omitempty" validate:"omitempty,min=0,max=1"`
	SatisfactionScore   *float64 `json:"satisfaction_score,omitempty" validate:"omitempty,min=0,max=1"`
	Pinned              bool     `json:"pinned"`
	PinnedTimeslotIndex *int     `json:"pinned_timeslot_index,omitempty" validate:"omitempty,min=0"`
	PinnedRoomIndex     *int     `json:"pinned_room_index,omitempty" validate:"omitempty,min=0"`
}

// OptimizationRequest captures POST /schedules/optimize. An empty lesson list optimizes the session timetable.
type OptimizationRequest struct {
	Timeslots              []TimeslotInput `json:"timeslots" validate:"omitempty,dive"`
	Rooms                  []RoomInput     `json:"rooms" validate:"omitempty,dive"`
	Lessons                []LessonInput   `json:"lessons" validate:"omitempty,dive"`
	SolverTimeLimitSeconds int             `json:"solver_time_limit_seconds" validate:"omitempty,min=1,max=3600"`
}

// UsesSession reports whether the job should run against the session timetable.
func (r OptimizationRequest) UsesSession() bool {
	return len(r.Lessons) == 0
}

// OptimizationJobResponse is returned when a job is accepted.
type OptimizationJobResponse struct {
	ID        string           `json:"id"`
	Status    models.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	StartedAt string           `json:"started_at"`
}
