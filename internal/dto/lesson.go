package dto

// CreateLessonRequest captures POST /lessons payload. Missing weights are predicted server side.
type CreateLessonRequest struct {
	Subject           string   `json:"subject" validate:"required,max=200"`
	Teacher           string   `json:"teacher" validate:"required,max=120"`
	StudentGroup      string   `json:"student_group" validate:"required,max=60"`
	DifficultyWeight  *float64 `json:"difficulty_weight,omitempty" validate:"omitempty,min=0,max=1"`
	SatisfactionScore *float64 `json:"satisfaction_score,omitempty" validate:"omitempty,min=0,max=1"`
	Pinned            bool     `json:"pinned"`
}

// ExportRequest selects which timetable to render and in which format.
type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
	Source string `json:"source" validate:"omitempty,oneof=current latest"`
}

// ExportResponse returns the signed download link.
type ExportResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
	Format    string `json:"format"`
}
