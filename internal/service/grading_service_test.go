package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kelas-go-api/internal/dto"
	"github.com/noah-isme/kelas-go-api/internal/models"
)

type gradingFixture struct {
	service GradingService
	repo    *fakeSubmissionRepo
	events  *recordingEvents
	teacher Actor
}

func newGradingFixture(t *testing.T, policy models.GradingPolicy) *gradingFixture {
	t.Helper()

	repo := newFakeSubmissionRepo()
	policies := &stubPolicyResolver{policies: map[uint]models.GradingPolicy{policy.AssignmentID: policy}}
	events := &recordingEvents{}
	validate := validator.New(validator.WithRequiredStructEnabled())

	svc := NewGradingService(repo, policies, events, validate, testLogger())
	svc.(*gradingService).now = func() time.Time {
		return time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	}

	return &gradingFixture{
		service: svc,
		repo:    repo,
		events:  events,
		teacher: Actor{ID: policy.TeacherID, Role: models.RoleTeacher},
	}
}

func (f *gradingFixture) seedSubmission(t *testing.T, policy models.GradingPolicy, isLate bool) uint {
	t.Helper()

	submission := models.Submission{
		AssignmentID:   policy.AssignmentID,
		StudentID:      10,
		CourseID:       policy.CourseID,
		CurrentVersion: 1,
		TextContent:    "answer",
		SubmittedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		IsLate:         isLate,
		Status:         models.SubmissionStatusSubmitted,
	}
	require.NoError(t, f.repo.Create(context.Background(), &submission))
	return submission.ID
}

func TestGradeOnTimeKeepsRawScore(t *testing.T) {
	policy := openPolicy(1)
	policy.LatePenaltyPercent = 20
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	response, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 80, Feedback: "good work"})
	require.NoError(t, err)

	require.NotNil(t, response.Grade)
	require.InDelta(t, 80, *response.Grade, 1e-9)
	require.Equal(t, models.SubmissionStatusGraded, response.Status)
	require.Equal(t, "good work", response.Feedback)
	require.NotNil(t, response.GradedBy)
	require.Equal(t, fixture.teacher.ID, *response.GradedBy)

	require.Equal(t, []string{EventSubmissionGraded}, fixture.events.types())
}

func TestGradeAppliesLatePenalty(t *testing.T) {
	policy := openPolicy(1)
	policy.LatePenaltyPercent = 20
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, true)

	response, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 80})
	require.NoError(t, err)

	require.NotNil(t, response.Grade)
	require.InDelta(t, 64, *response.Grade, 1e-9)

	// The feedback row records the penalty-adjusted grade.
	require.Len(t, response.FeedbackLog, 1)
	require.NotNil(t, response.FeedbackLog[0].Grade)
	require.InDelta(t, 64, *response.FeedbackLog[0].Grade, 1e-9)
}

func TestGradeRejectsScoreOutOfRange(t *testing.T) {
	policy := openPolicy(1)
	policy.MaxPoints = 50
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	_, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 50.5})
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	// Exactly max is acceptable.
	response, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 50})
	require.NoError(t, err)
	require.InDelta(t, 50, *response.Grade, 1e-9)
}

func TestRegradeReplacesGradeAndGrowsHistory(t *testing.T) {
	policy := openPolicy(1)
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	_, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 70, Feedback: "first pass"})
	require.NoError(t, err)

	response, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 85, Feedback: "after appeal"})
	require.NoError(t, err)

	require.InDelta(t, 85, *response.Grade, 1e-9)
	require.Len(t, response.FeedbackLog, 2)
	require.Equal(t, "first pass", response.FeedbackLog[0].Feedback)
	require.Equal(t, "after appeal", response.FeedbackLog[1].Feedback)
}

func TestGradeRequiresOwningTeacher(t *testing.T) {
	policy := openPolicy(1)
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	_, err := fixture.service.Grade(context.Background(), Actor{ID: 10, Role: models.RoleStudent}, id, dto.GradeRequest{Score: 90})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = fixture.service.Grade(context.Background(), Actor{ID: 99, Role: models.RoleTeacher}, id, dto.GradeRequest{Score: 90})
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestGradeUnknownSubmission(t *testing.T) {
	fixture := newGradingFixture(t, openPolicy(1))

	_, err := fixture.service.Grade(context.Background(), fixture.teacher, 999, dto.GradeRequest{Score: 90})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestReturnRequiresGradedStatus(t *testing.T) {
	policy := openPolicy(1)
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	_, err := fixture.service.Return(context.Background(), fixture.teacher, id)
	require.ErrorIs(t, err, ErrNotGraded)

	_, err = fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 75})
	require.NoError(t, err)

	response, err := fixture.service.Return(context.Background(), fixture.teacher, id)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusReturned, response.Status)
	require.InDelta(t, 75, *response.Grade, 1e-9)

	require.Equal(t, []string{EventSubmissionGraded, EventSubmissionReturned}, fixture.events.types())
}

func TestAddFeedbackWithoutScore(t *testing.T) {
	policy := openPolicy(1)
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	response, err := fixture.service.AddFeedback(context.Background(), fixture.teacher, id, dto.FeedbackRequest{Feedback: "please expand section 2"})
	require.NoError(t, err)

	// Commentary alone never grades the submission.
	require.Nil(t, response.Grade)
	require.Equal(t, models.SubmissionStatusSubmitted, response.Status)
	require.Len(t, response.FeedbackLog, 1)
	require.Nil(t, response.FeedbackLog[0].Grade)
	require.Equal(t, 1, response.FeedbackLog[0].Version)
	require.Empty(t, fixture.events.types())
}

func TestAddFeedbackWithScoreGrades(t *testing.T) {
	policy := openPolicy(1)
	policy.LatePenaltyPercent = 10
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, true)

	score := 90.0
	response, err := fixture.service.AddFeedback(context.Background(), fixture.teacher, id, dto.FeedbackRequest{Feedback: "solid", Score: &score})
	require.NoError(t, err)

	require.Equal(t, models.SubmissionStatusGraded, response.Status)
	require.InDelta(t, 81, *response.Grade, 1e-9)
	require.Equal(t, []string{EventSubmissionGraded}, fixture.events.types())
}

func TestFeedbackVersionTracksCurrentVersion(t *testing.T) {
	policy := openPolicy(1)
	fixture := newGradingFixture(t, policy)
	id := fixture.seedSubmission(t, policy, false)

	// A resubmission lands between the teacher opening the page and grading.
	stored, err := fixture.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	updated := stored
	updated.CurrentVersion = 3
	require.NoError(t, fixture.repo.Update(context.Background(), &updated))

	response, err := fixture.service.Grade(context.Background(), fixture.teacher, id, dto.GradeRequest{Score: 88})
	require.NoError(t, err)

	require.Len(t, response.FeedbackLog, 1)
	require.Equal(t, 3, response.FeedbackLog[0].Version)
}

func TestPenaltyClampsAtZero(t *testing.T) {
	require.Zero(t, applyLatePenalty(10, 150, true))
	require.InDelta(t, 10, applyLatePenalty(10, 150, false), 1e-9)
	require.InDelta(t, 10, applyLatePenalty(10, 0, true), 1e-9)
}
