package dto

// GradeRequest carries a teacher-entered raw score and feedback. The stored
// grade is the score after any late penalty.
type GradeRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback" validate:"omitempty,max=65535"`
}

// FeedbackRequest appends feedback without necessarily regrading. When Score
// is present the grading step runs with the usual penalty rule.
type FeedbackRequest struct {
	Feedback string   `json:"feedback" validate:"required,max=65535"`
	Score    *float64 `json:"score" validate:"omitempty,gte=0"`
}
