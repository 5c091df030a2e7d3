package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission lifecycle statuses.
const (
	// SubmissionStatusSubmitted indicates the first version has been handed in.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the current version has been evaluated.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusReturned indicates graded work has been handed back.
	SubmissionStatusReturned = "returned"
	// SubmissionStatusResubmitted indicates a replacement version superseded an earlier one.
	SubmissionStatusResubmitted = "resubmitted"
)

// FileRef points at one stored file. Refs are embedded as JSON on the
// submission and its version snapshots; the blob store owns the bytes.
type FileRef struct {
	StorageName  string    `json:"storage_name"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type"`
	Checksum     string    `json:"checksum"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Submission is the one-per-(assignment, student) aggregate. The current
// fields always describe the latest version; superseded versions live in
// Versions and every grading pass lives in FeedbackLog, both append-only.
//
// The resubmission policy fields are snapshotted from the assignment at first
// submit so later resubmission checks stay stable if the policy changes.
type Submission struct {
	ID             uint                         `gorm:"primaryKey" json:"id"`
	AssignmentID   uint                         `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID      uint                         `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"student_id"`
	CourseID       uint                         `gorm:"not null;index" json:"course_id"`
	CurrentVersion int                          `gorm:"not null;default:1" json:"current_version"`
	TextContent    string                       `gorm:"type:text" json:"text_content"`
	FileRefs       datatypes.JSONSlice[FileRef] `json:"file_refs"`
	SubmittedAt    time.Time                    `gorm:"not null" json:"submitted_at"`
	IsLate         bool                         `gorm:"not null" json:"is_late"`
	Status         string                       `gorm:"size:32;not null" json:"status"`
	Grade          *float64                     `json:"grade"`
	Feedback       string                       `gorm:"type:text" json:"feedback"`
	GradedAt       *time.Time                   `json:"graded_at"`
	GradedBy       *uint                        `json:"graded_by"`

	AllowResubmission    bool       `gorm:"not null" json:"allow_resubmission"`
	ResubmissionDeadline *time.Time `json:"resubmission_deadline"`
	MaxResubmissions     int        `gorm:"not null;default:0" json:"max_resubmissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Versions    []SubmissionVersion  `gorm:"constraint:OnDelete:CASCADE" json:"versions"`
	FeedbackLog []SubmissionFeedback `gorm:"constraint:OnDelete:CASCADE" json:"feedback_log"`
}

// SubmissionVersion snapshots the outgoing current state immediately before a
// resubmission overwrites it. Rows are append-only; version N of a submission
// at CurrentVersion V exists for every N < V.
type SubmissionVersion struct {
	ID             uint                         `gorm:"primaryKey" json:"id"`
	SubmissionID   uint                         `gorm:"not null;index" json:"submission_id"`
	Version        int                          `gorm:"not null" json:"version"`
	TextContent    string                       `gorm:"type:text" json:"text_content"`
	FileRefs       datatypes.JSONSlice[FileRef] `json:"file_refs"`
	SubmittedAt    time.Time                    `gorm:"not null" json:"submitted_at"`
	IsLate         bool                         `gorm:"not null" json:"is_late"`
	StudentComment string                       `gorm:"type:text" json:"student_comment"`
	CreatedAt      time.Time                    `json:"created_at"`
}

// SubmissionFeedback records one grading pass. Grade holds the final
// penalty-adjusted value; Version is the submission version that was current
// when the feedback was written.
type SubmissionFeedback struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Version      int       `gorm:"not null" json:"version"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	Grade        *float64  `json:"grade"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}

// IsGraded reports whether the submission carries a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// ResubmissionsUsed counts replacement submits already applied.
func (s Submission) ResubmissionsUsed() int {
	return s.CurrentVersion - 1
}

// AllFileRefs collects every historical ref plus the current refs, in version
// order. Deletion uses it to cascade blob cleanup.
func (s Submission) AllFileRefs() []FileRef {
	refs := make([]FileRef, 0, len(s.FileRefs)+len(s.Versions))
	for _, version := range s.Versions {
		refs = append(refs, version.FileRefs...)
	}
	refs = append(refs, s.FileRefs...)
	return refs
}
