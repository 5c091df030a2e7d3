package service

import (
	"context"
	"errors"
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

// GradingService evaluates submissions: scoring with late-penalty math,
// feedback history, and the graded/returned status transitions.
type GradingService interface {
	Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error)
	Return(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error)
	AddFeedback(ctx context.Context, actor Actor, submissionID uint, payload dto.FeedbackRequest) (dto.SubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	policies    PolicyResolver
	events      EventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(submissions repository.SubmissionRepository, policies PolicyResolver, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		policies:    policies,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/kelas-go-api/internal/service/grading"),
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.GradingLatency().Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	feedback := s.sanitizer.Sanitize(payload.Feedback)
	score := payload.Score

	submission, policy, err := s.loadForGrading(ctx, actor, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	saved, err := s.applyGrade(ctx, actor, submission, policy, score, feedback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_failed")
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(
		attribute.Float64("grading.raw_score", score),
		attribute.Float64("grading.final_grade", *saved.Grade),
		attribute.Bool("grading.late_penalty_applied", saved.IsLate && policy.LatePenaltyPercent > 0),
	)

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionGraded,
			SubmissionID: saved.ID,
			AssignmentID: saved.AssignmentID,
			StudentID:    saved.StudentID,
			CourseID:     saved.CourseID,
			Version:      saved.CurrentVersion,
			ActorID:      actor.ID,
		})
	}

	s.logger.Info().
		Uint("submission_id", saved.ID).
		Uint("graded_by", actor.ID).
		Float64("grade", *saved.Grade).
		Msg("submission graded")

	return dto.NewSubmissionResponse(saved), nil
}

func (s *gradingService) Return(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error) {
	submission, _, err := s.loadForGrading(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if submission.Status != models.SubmissionStatusGraded {
		return dto.SubmissionResponse{}, ErrNotGraded
	}

	submission.Status = models.SubmissionStatusReturned
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionReturned,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			CourseID:     submission.CourseID,
			Version:      submission.CurrentVersion,
			ActorID:      actor.ID,
		})
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission returned to student")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) AddFeedback(ctx context.Context, actor Actor, submissionID uint, payload dto.FeedbackRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	feedback := s.sanitizer.Sanitize(payload.Feedback)

	submission, policy, err := s.loadForGrading(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if payload.Score != nil {
		return s.gradeAndRespond(ctx, actor, submission, policy, *payload.Score, feedback)
	}

	entry := models.SubmissionFeedback{
		SubmissionID: submission.ID,
		Version:      submission.CurrentVersion,
		Feedback:     feedback,
		GradedBy:     actor.ID,
		GradedAt:     s.now(),
	}

	submission.Feedback = feedback
	if err := s.submissions.SaveWithFeedback(ctx, &submission, &entry); err != nil {
		return dto.SubmissionResponse{}, err
	}

	saved, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", saved.ID).Uint("teacher_id", actor.ID).Msg("feedback added")

	return dto.NewSubmissionResponse(saved), nil
}

func (s *gradingService) gradeAndRespond(ctx context.Context, actor Actor, submission models.Submission, policy models.GradingPolicy, score float64, feedback string) (dto.SubmissionResponse, error) {
	saved, err := s.applyGrade(ctx, actor, submission, policy, score, feedback)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         EventSubmissionGraded,
			SubmissionID: saved.ID,
			AssignmentID: saved.AssignmentID,
			StudentID:    saved.StudentID,
			CourseID:     saved.CourseID,
			Version:      saved.CurrentVersion,
			ActorID:      actor.ID,
		})
	}

	return dto.NewSubmissionResponse(saved), nil
}

// applyGrade runs the grade step against the freshly read submission: bounds
// check on the raw score, late penalty from the current IsLate flag, feedback
// row stamped with the version seen now, then one transactional save.
func (s *gradingService) applyGrade(ctx context.Context, actor Actor, submission models.Submission, policy models.GradingPolicy, score float64, feedback string) (models.Submission, error) {
	maxPoints := policy.EffectiveMaxPoints()
	if score < 0 || score > maxPoints+1e-9 {
		return models.Submission{}, ErrScoreOutOfRange
	}

	finalGrade := applyLatePenalty(score, policy.LatePenaltyPercent, submission.IsLate)
	gradedAt := s.now()
	gradedBy := actor.ID

	entry := models.SubmissionFeedback{
		SubmissionID: submission.ID,
		Version:      submission.CurrentVersion,
		Feedback:     feedback,
		Grade:        &finalGrade,
		GradedBy:     gradedBy,
		GradedAt:     gradedAt,
	}

	submission.Grade = &finalGrade
	submission.Feedback = feedback
	submission.GradedAt = &gradedAt
	submission.GradedBy = &gradedBy
	submission.Status = models.SubmissionStatusGraded

	if err := s.submissions.SaveWithFeedback(ctx, &submission, &entry); err != nil {
		return models.Submission{}, err
	}

	observability.GradingsTotal().Inc()

	return s.submissions.GetByID(ctx, submission.ID)
}

// loadForGrading re-reads the submission and its policy inside the grading
// request so concurrent resubmissions cannot leave a stale version on the
// feedback entry.
func (s *gradingService) loadForGrading(ctx context.Context, actor Actor, submissionID uint) (models.Submission, models.GradingPolicy, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.GradingPolicy{}, ErrSubmissionNotFound
		}
		return models.Submission{}, models.GradingPolicy{}, err
	}

	policy, err := s.policies.Resolve(ctx, submission.AssignmentID)
	if err != nil {
		return models.Submission{}, models.GradingPolicy{}, err
	}

	if actor.Role != models.RoleTeacher || actor.ID != policy.TeacherID {
		return models.Submission{}, models.GradingPolicy{}, ErrNotOwner
	}

	return submission, policy, nil
}

// applyLatePenalty deducts the percentage once, based on the lateness of the
// active version only, and clamps at zero.
func applyLatePenalty(raw, penaltyPercent float64, isLate bool) float64 {
	if !isLate || penaltyPercent <= 0 {
		return raw
	}

	final := raw - raw*penaltyPercent/100
	if final < 0 {
		return 0
	}
	return final
}
