package dto

import (
	"time"

	"github.com/noah-isme/kelas-go-api/internal/models"
)

// SubmitRequest describes the multipart payload for a submit or resubmit.
// Files arrive separately as multipart file headers.
type SubmitRequest struct {
	TextContent string `form:"text_content" validate:"omitempty,max=65535"`
	Comment     string `form:"comment" validate:"omitempty,max=2000"`
}

// FileRefResponse serializes one stored file reference.
type FileRefResponse struct {
	StorageName  string    `json:"storage_name"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// VersionResponse serializes a superseded version snapshot.
type VersionResponse struct {
	Version        int               `json:"version"`
	TextContent    string            `json:"text_content"`
	FileRefs       []FileRefResponse `json:"file_refs"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	IsLate         bool              `json:"is_late"`
	StudentComment string            `json:"student_comment"`
}

// FeedbackEntryResponse serializes one grading pass.
type FeedbackEntryResponse struct {
	Version  int       `json:"version"`
	Feedback string    `json:"feedback"`
	Grade    *float64  `json:"grade"`
	GradedBy uint      `json:"graded_by"`
	GradedAt time.Time `json:"graded_at"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID                   uint                    `json:"id"`
	AssignmentID         uint                    `json:"assignment_id"`
	StudentID            uint                    `json:"student_id"`
	CourseID             uint                    `json:"course_id"`
	CurrentVersion       int                     `json:"current_version"`
	TextContent          string                  `json:"text_content"`
	FileRefs             []FileRefResponse       `json:"file_refs"`
	SubmittedAt          time.Time               `json:"submitted_at"`
	IsLate               bool                    `json:"is_late"`
	Status               string                  `json:"status"`
	Grade                *float64                `json:"grade"`
	Feedback             string                  `json:"feedback"`
	GradedAt             *time.Time              `json:"graded_at"`
	GradedBy             *uint                   `json:"graded_by"`
	AllowResubmission    bool                    `json:"allow_resubmission"`
	ResubmissionDeadline *time.Time              `json:"resubmission_deadline"`
	MaxResubmissions     int                     `json:"max_resubmissions"`
	Versions             []VersionResponse       `json:"versions"`
	FeedbackLog          []FeedbackEntryResponse `json:"feedback_log"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                   model.ID,
		AssignmentID:         model.AssignmentID,
		StudentID:            model.StudentID,
		CourseID:             model.CourseID,
		CurrentVersion:       model.CurrentVersion,
		TextContent:          model.TextContent,
		FileRefs:             newFileRefResponses(model.FileRefs),
		SubmittedAt:          model.SubmittedAt,
		IsLate:               model.IsLate,
		Status:               model.Status,
		Grade:                model.Grade,
		Feedback:             model.Feedback,
		GradedAt:             model.GradedAt,
		GradedBy:             model.GradedBy,
		AllowResubmission:    model.AllowResubmission,
		ResubmissionDeadline: model.ResubmissionDeadline,
		MaxResubmissions:     model.MaxResubmissions,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}

	response.Versions = make([]VersionResponse, 0, len(model.Versions))
	for _, version := range model.Versions {
		response.Versions = append(response.Versions, VersionResponse{
			Version:        version.Version,
			TextContent:    version.TextContent,
			FileRefs:       newFileRefResponses(version.FileRefs),
			SubmittedAt:    version.SubmittedAt,
			IsLate:         version.IsLate,
			StudentComment: version.StudentComment,
		})
	}

	response.FeedbackLog = make([]FeedbackEntryResponse, 0, len(model.FeedbackLog))
	for _, entry := range model.FeedbackLog {
		response.FeedbackLog = append(response.FeedbackLog, FeedbackEntryResponse{
			Version:  entry.Version,
			Feedback: entry.Feedback,
			Grade:    entry.Grade,
			GradedBy: entry.GradedBy,
			GradedAt: entry.GradedAt,
		})
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

func newFileRefResponses(refs []models.FileRef) []FileRefResponse {
	responses := make([]FileRefResponse, 0, len(refs))
	for _, ref := range refs {
		responses = append(responses, FileRefResponse{
			StorageName:  ref.StorageName,
			OriginalName: ref.OriginalName,
			URL:          ref.URL,
			SizeBytes:    ref.SizeBytes,
			MimeType:     ref.MimeType,
			UploadedAt:   ref.UploadedAt,
		})
	}

	return responses
}
