package scheduler

import (
	"crypto/md5" //nolint:gosec // used for stable bucketing, not security
	"math"
	"strings"
)

// Prediction source labels.
const (
	SourceHistorical = "historical"
	SourceInferred   = "inferred"
)

// Prediction carries estimated lesson weights for a course code or subject name.
type Prediction struct {
	CourseID          string  `json:"course_id"`
	DifficultyWeight  float64 `json:"difficulty_weight"`
	SatisfactionScore float64 `json:"satisfaction_score"`
	Confidence        float64 `json:"confidence"`
	Source            string  `json:"source"`
}

type courseMetrics struct {
	difficulty   float64
	satisfaction float64
}

var knownCourses = map[string]courseMetrics{
	"CS101":   {0.45, 0.88},
	"CS201":   {0.65, 0.82},
	"CS301":   {0.78, 0.75},
	"CS401":   {0.85, 0.70},
	"CS402":   {0.72, 0.85},
	"CS403":   {0.68, 0.80},
	"CS450":   {0.90, 0.92},
	"CS451":   {0.88, 0.90},
	"CS460":   {0.55, 0.90},
	"MATH101": {0.50, 0.65},
	"MATH201": {0.70, 0.60},
	"MATH301": {0.82, 0.55},
	"MATH401": {0.75, 0.70},
	"PHY101":  {0.60, 0.68},
	"PHY201":  {0.72, 0.65},
	"ENG101":  {0.35, 0.75},
	"SE301":   {0.58, 0.85},
}

// Predictor estimates difficulty and satisfaction for lessons that arrive without them.
type Predictor struct {
	courses map[string]courseMetrics
}

// NewPredictor returns a predictor backed by the built-in course table.
func NewPredictor() *Predictor {
	return &Predictor{courses: knownCourses}
}

// Predict returns table values for known course codes and hash-derived, stable values otherwise.
func (p *Predictor) Predict(courseID string) Prediction {
	normalized := strings.ToUpper(strings.TrimSpace(courseID))
	if metrics, ok := p.courses[normalized]; ok {
		return Prediction{
			CourseID:          courseID,
			DifficultyWeight:  metrics.difficulty,
			SatisfactionScore: metrics.satisfaction,
			Confidence:        0.95,
			Source:            SourceHistorical,
		}
	}

	sum := md5.Sum([]byte(normalized)) //nolint:gosec
	difficulty := 0.3 + (float64(sum[0])+float64(sum[1]))/510*0.65
	satisfaction := 0.4 + (float64(sum[2])+float64(sum[3]))/510*0.55
	return Prediction{
		CourseID:          courseID,
		DifficultyWeight:  round3(difficulty),
		SatisfactionScore: round3(satisfaction),
		Confidence:        0.60,
		Source:            SourceInferred,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
