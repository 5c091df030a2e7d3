package models

import "time"

// Submission type constraints configured on an assignment.
const (
	SubmissionTypeFile = "file"
	SubmissionTypeText = "text"
	SubmissionTypeBoth = "both"
)

// Assignment represents the registry-owned task definition. The submission
// subsystem only reads it; everything it needs at submit/grade time is
// projected into a GradingPolicy.
type Assignment struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	CourseID             uint       `gorm:"not null;index" json:"course_id"`
	TeacherID            uint       `gorm:"not null" json:"teacher_id"`
	Title                string     `gorm:"size:255;not null" json:"title"`
	Description          string     `gorm:"type:text" json:"description"`
	Published            bool       `gorm:"not null;default:false" json:"published"`
	DueDate              time.Time  `gorm:"not null" json:"due_date"`
	MaxPoints            float64    `gorm:"not null;default:100" json:"max_points"`
	AllowLateSubmission  bool       `json:"allow_late_submission"`
	LatePenaltyPercent   float64    `gorm:"not null;default:0" json:"late_penalty_percent"`
	SubmissionType       string     `gorm:"size:16;not null;default:both" json:"submission_type"`
	AllowResubmission    bool       `json:"allow_resubmission"`
	ResubmissionDeadline *time.Time `json:"resubmission_deadline"`
	MaxResubmissions     int        `gorm:"not null;default:0" json:"max_resubmissions"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// GradingPolicy is the immutable value object the versioning and grading
// engines evaluate submissions against. It is derived from the assignment row
// at request time and never persisted.
type GradingPolicy struct {
	AssignmentID         uint
	CourseID             uint
	TeacherID            uint
	Published            bool
	DueDate              time.Time
	MaxPoints            float64
	AllowLateSubmission  bool
	LatePenaltyPercent   float64
	SubmissionType       string
	AllowResubmission    bool
	ResubmissionDeadline *time.Time
	MaxResubmissions     int
}

// Policy projects the assignment's grading and submission rules.
func (a Assignment) Policy() GradingPolicy {
	return GradingPolicy{
		AssignmentID:         a.ID,
		CourseID:             a.CourseID,
		TeacherID:            a.TeacherID,
		Published:            a.Published,
		DueDate:              a.DueDate,
		MaxPoints:            a.MaxPoints,
		AllowLateSubmission:  a.AllowLateSubmission,
		LatePenaltyPercent:   a.LatePenaltyPercent,
		SubmissionType:       a.SubmissionType,
		AllowResubmission:    a.AllowResubmission,
		ResubmissionDeadline: a.ResubmissionDeadline,
		MaxResubmissions:     a.MaxResubmissions,
	}
}

// IsLateAt reports whether a submission made at the reference time counts as
// late. A submission made exactly at the due date is on time.
func (p GradingPolicy) IsLateAt(reference time.Time) bool {
	return reference.After(p.DueDate)
}

// EffectiveMaxPoints guards against assignments created before max_points
// existed; they grade out of 100.
func (p GradingPolicy) EffectiveMaxPoints() float64 {
	if p.MaxPoints <= 0 {
		return 100
	}
	return p.MaxPoints
}
