package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/kelas-go-api/internal/dto"
	"github.com/noah-isme/kelas-go-api/internal/models"
	"github.com/noah-isme/kelas-go-api/internal/observability"
	"github.com/noah-isme/kelas-go-api/internal/repository"
)

// SubmissionService orchestrates the versioned submission lifecycle: first
// submits, resubmissions, reads, and teacher-initiated deletion.
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, assignmentID uint, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error)
	ListByAssignment(ctx context.Context, actor Actor, assignmentID uint) ([]dto.SubmissionResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	policies    PolicyResolver
	uploads     UploadService
	storage     FileStorage
	events      EventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(submissions repository.SubmissionRepository, policies PolicyResolver, uploads UploadService, storage FileStorage, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		policies:    policies,
		uploads:     uploads,
		storage:     storage,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/kelas-go-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, actor Actor, assignmentID uint, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	span.SetAttributes(
		attribute.Int64("submission.assignment_id", int64(assignmentID)),
		attribute.Int64("submission.student_id", int64(actor.ID)),
		attribute.Int("submission.file_count", len(files)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	if actor.Role != models.RoleStudent || actor.ID == 0 {
		return dto.SubmissionResponse{}, ErrNotOwner
	}

	policy, err := s.policies.Resolve(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy_resolution_failed")
		return dto.SubmissionResponse{}, err
	}

	if !policy.Published {
		return dto.SubmissionResponse{}, ErrAssignmentUnpublished
	}

	now := s.now()
	isLate := policy.IsLateAt(now)
	if isLate && !policy.AllowLateSubmission {
		observability.SubmissionsTotal().WithLabelValues("rejected_deadline").Inc()
		return dto.SubmissionResponse{}, ErrDeadlinePassed
	}

	textContent := s.sanitizer.Sanitize(payload.TextContent)
	comment := s.sanitizer.Sanitize(payload.Comment)

	if err := validateContent(policy.SubmissionType, textContent, len(files)); err != nil {
		return dto.SubmissionResponse{}, err
	}

	existing, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	firstSubmit := false
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			return dto.SubmissionResponse{}, err
		}
		firstSubmit = true
	}

	if !firstSubmit {
		if err := checkResubmission(existing, now); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	// Admissibility is settled; push files to the blob store before any
	// record mutation so a storage failure aborts the whole call.
	refs, err := s.uploadAll(ctx, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.SubmissionResponse{}, err
	}

	var saved models.Submission
	if firstSubmit {
		saved, err = s.createFirst(ctx, actor, policy, textContent, refs, now, isLate)
	} else {
		saved, err = s.resubmit(ctx, existing, textContent, comment, refs, now, isLate)
	}
	if err != nil {
		s.discardRefs(ctx, refs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence_failed")
		return dto.SubmissionResponse{}, err
	}

	eventType := EventSubmissionCreated
	outcome := "created"
	if !firstSubmit {
		eventType = EventSubmissionResubmitted
		outcome = "resubmitted"
	}
	observability.SubmissionsTotal().WithLabelValues(outcome).Inc()
	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         eventType,
			SubmissionID: saved.ID,
			AssignmentID: saved.AssignmentID,
			StudentID:    saved.StudentID,
			CourseID:     saved.CourseID,
			Version:      saved.CurrentVersion,
			ActorID:      actor.ID,
			OccurredAt:   now,
		})
	}

	span.SetAttributes(
		attribute.Int("submission.version", saved.CurrentVersion),
		attribute.Bool("submission.is_late", saved.IsLate),
	)

	s.logger.Info().
		Uint("submission_id", saved.ID).
		Int("version", saved.CurrentVersion).
		Bool("is_late", saved.IsLate).
		Msg("submission accepted")

	return dto.NewSubmissionResponse(saved), nil
}

func (s *submissionService) createFirst(ctx context.Context, actor Actor, policy models.GradingPolicy, textContent string, refs []models.FileRef, now time.Time, isLate bool) (models.Submission, error) {
	submission := models.Submission{
		AssignmentID:   policy.AssignmentID,
		StudentID:      actor.ID,
		CourseID:       policy.CourseID,
		CurrentVersion: 1,
		TextContent:    textContent,
		FileRefs:       refs,
		SubmittedAt:    now,
		IsLate:         isLate,
		Status:         models.SubmissionStatusSubmitted,

		// Snapshot the resubmission policy so later checks stay stable
		// even if the assignment changes.
		AllowResubmission:    policy.AllowResubmission,
		ResubmissionDeadline: policy.ResubmissionDeadline,
		MaxResubmissions:     policy.MaxResubmissions,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a first-submit race; the unique index held the
			// one-per-pair invariant. The caller retries as a resubmission.
			return models.Submission{}, ErrVersionConflict
		}
		return models.Submission{}, err
	}

	return s.submissions.GetByID(ctx, submission.ID)
}

func (s *submissionService) resubmit(ctx context.Context, existing models.Submission, textContent, comment string, refs []models.FileRef, now time.Time, isLate bool) (models.Submission, error) {
	snapshot := models.SubmissionVersion{
		SubmissionID:   existing.ID,
		Version:        existing.CurrentVersion,
		TextContent:    existing.TextContent,
		FileRefs:       existing.FileRefs,
		SubmittedAt:    existing.SubmittedAt,
		IsLate:         existing.IsLate,
		StudentComment: comment,
	}

	updated := existing
	updated.CurrentVersion = existing.CurrentVersion + 1
	updated.TextContent = textContent
	updated.FileRefs = refs
	updated.SubmittedAt = now
	updated.IsLate = isLate
	updated.Status = models.SubmissionStatusResubmitted

	if err := s.submissions.Resubmit(ctx, &updated, existing.CurrentVersion, &snapshot); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return models.Submission{}, ErrVersionConflict
		}
		return models.Submission{}, err
	}

	return s.submissions.GetByID(ctx, existing.ID)
}

func (s *submissionService) Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.find(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.authorizeRead(ctx, actor, submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListByAssignment(ctx context.Context, actor Actor, assignmentID uint) ([]dto.SubmissionResponse, error) {
	policy, err := s.policies.Resolve(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if actor.Role != models.RoleTeacher || actor.ID != policy.TeacherID {
		return nil, ErrNotOwner
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// Delete removes the record and best-effort cleans every referenced blob,
// current and historical. Blob failures are logged and swallowed; the record
// deletion proceeds regardless.
func (s *submissionService) Delete(ctx context.Context, actor Actor, id uint) error {
	submission, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorizeTeacher(ctx, actor, submission.AssignmentID); err != nil {
		return err
	}

	s.discardRefs(ctx, submission.AllFileRefs())

	if err := s.submissions.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	observability.SubmissionsTotal().WithLabelValues("deleted").Inc()
	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionDeleted,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			CourseID:     submission.CourseID,
			Version:      submission.CurrentVersion,
			ActorID:      actor.ID,
			OccurredAt:   s.now(),
		})
	}

	s.logger.Info().Uint("submission_id", id).Uint("teacher_id", actor.ID).Msg("submission deleted")

	return nil
}

func (s *submissionService) find(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	return submission, nil
}

func (s *submissionService) authorizeRead(ctx context.Context, actor Actor, submission models.Submission) error {
	switch actor.Role {
	case models.RoleStudent:
		if actor.ID == submission.StudentID {
			return nil
		}
	case models.RoleTeacher:
		return s.authorizeTeacher(ctx, actor, submission.AssignmentID)
	}

	return ErrNotOwner
}

func (s *submissionService) authorizeTeacher(ctx context.Context, actor Actor, assignmentID uint) error {
	if actor.Role != models.RoleTeacher {
		return ErrNotOwner
	}

	policy, err := s.policies.Resolve(ctx, assignmentID)
	if err != nil {
		return err
	}

	if policy.TeacherID != actor.ID {
		return ErrNotOwner
	}

	return nil
}

func (s *submissionService) uploadAll(ctx context.Context, files []*multipart.FileHeader) ([]models.FileRef, error) {
	refs := make([]models.FileRef, 0, len(files))
	for _, file := range files {
		ref, err := s.uploads.Store(ctx, file)
		if err != nil {
			s.discardRefs(ctx, refs)
			return nil, fmt.Errorf("failed to upload %q: %w", file.Filename, err)
		}
		refs = append(refs, ref)
	}

	return refs, nil
}

func (s *submissionService) discardRefs(ctx context.Context, refs []models.FileRef) {
	for _, ref := range refs {
		if err := s.storage.Delete(ctx, ref.StorageName); err != nil {
			s.logger.Warn().Err(err).Str("storage_name", ref.StorageName).Msg("failed to delete stored file")
		}
	}
}

func validateContent(submissionType, textContent string, fileCount int) error {
	hasText := strings.TrimSpace(textContent) != ""
	hasFiles := fileCount > 0

	switch submissionType {
	case models.SubmissionTypeFile:
		if !hasFiles {
			return ErrContentRequired
		}
	case models.SubmissionTypeText:
		if !hasText {
			return ErrContentRequired
		}
	default:
		if !hasText && !hasFiles {
			return ErrContentRequired
		}
	}

	return nil
}

func checkResubmission(submission models.Submission, now time.Time) error {
	if !submission.AllowResubmission {
		return ErrResubmissionNotAllowed
	}
	if submission.ResubmissionsUsed() >= submission.MaxResubmissions {
		return ErrResubmissionLimit
	}
	// Equality is still inside the window; only strictly later is expired.
	if submission.ResubmissionDeadline != nil && now.After(*submission.ResubmissionDeadline) {
		return ErrResubmissionWindowClosed
	}

	return nil
}
