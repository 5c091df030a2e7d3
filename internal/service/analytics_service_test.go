package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kelas-go-api/internal/models"
)

func seedCourseSubmissions(t *testing.T, repo *fakeSubmissionRepo) {
	t.Helper()

	grade := func(v float64) *float64 { return &v }
	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }

	rows := []models.Submission{
		{AssignmentID: 1, StudentID: 10, CourseID: 7, CurrentVersion: 1, SubmittedAt: day(1), Status: models.SubmissionStatusGraded, Grade: grade(95)},
		{AssignmentID: 1, StudentID: 11, CourseID: 7, CurrentVersion: 1, SubmittedAt: day(1), Status: models.SubmissionStatusGraded, Grade: grade(82), IsLate: true},
		{AssignmentID: 1, StudentID: 12, CourseID: 7, CurrentVersion: 2, SubmittedAt: day(2), Status: models.SubmissionStatusResubmitted},
		{AssignmentID: 2, StudentID: 10, CourseID: 7, CurrentVersion: 1, SubmittedAt: day(2), Status: models.SubmissionStatusReturned, Grade: grade(55)},
		{AssignmentID: 2, StudentID: 11, CourseID: 7, CurrentVersion: 1, SubmittedAt: day(3), Status: models.SubmissionStatusSubmitted},
		// A 45 on the 50-point assignment is a 90% score.
		{AssignmentID: 5, StudentID: 13, CourseID: 7, CurrentVersion: 1, SubmittedAt: day(3), Status: models.SubmissionStatusGraded, Grade: grade(45)},
		{AssignmentID: 3, StudentID: 20, CourseID: 8, CurrentVersion: 1, SubmittedAt: day(1), Status: models.SubmissionStatusSubmitted},
	}

	for i := range rows {
		require.NoError(t, repo.Create(context.Background(), &rows[i]))
	}
}

func courseAssignments() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{assignments: map[uint]models.Assignment{
		1: {ID: 1, CourseID: 7, MaxPoints: 100},
		2: {ID: 2, CourseID: 7, MaxPoints: 100},
		5: {ID: 5, CourseID: 7, MaxPoints: 50},
		3: {ID: 3, CourseID: 8, MaxPoints: 100},
	}}
}

func TestCourseSummaryAggregates(t *testing.T) {
	repo := newFakeSubmissionRepo()
	seedCourseSubmissions(t, repo)

	service := NewAnalyticsService(repo, courseAssignments(), nil, time.Minute, testLogger())

	summary, err := service.CourseSummary(context.Background(), Actor{ID: 42, Role: models.RoleTeacher}, 7)
	require.NoError(t, err)

	require.Equal(t, uint(7), summary.CourseID)
	require.Equal(t, int64(6), summary.TotalSubmissions)
	require.Equal(t, int64(1), summary.StatusCounts[models.SubmissionStatusSubmitted])
	require.Equal(t, int64(3), summary.StatusCounts[models.SubmissionStatusGraded])
	require.Equal(t, int64(1), summary.StatusCounts[models.SubmissionStatusReturned])
	require.Equal(t, int64(1), summary.StatusCounts[models.SubmissionStatusResubmitted])
	require.Equal(t, int64(1), summary.LateSubmissions)

	require.Equal(t, int64(4), summary.GradedCount)
	require.NotNil(t, summary.AverageGrade)
	require.InDelta(t, (95.0+82.0+55.0+45.0)/4, *summary.AverageGrade, 1e-9)

	// Buckets are percent of each assignment's points: 95/100 and 45/50 are
	// both 90%+ scores, 55/100 is not.
	require.Equal(t, int64(2), summary.GradeDistribution["90-100"])
	require.Equal(t, int64(1), summary.GradeDistribution["80-89"])
	require.Equal(t, int64(0), summary.GradeDistribution["70-79"])
	require.Equal(t, int64(0), summary.GradeDistribution["60-69"])
	require.Equal(t, int64(1), summary.GradeDistribution["0-59"])

	require.Len(t, summary.Timeline, 3)
	require.Equal(t, "2026-03-01", summary.Timeline[0].Date)
	require.Equal(t, int64(2), summary.Timeline[0].Submissions)
	require.Equal(t, "2026-03-02", summary.Timeline[1].Date)
	require.Equal(t, int64(2), summary.Timeline[1].Submissions)
	require.Equal(t, "2026-03-03", summary.Timeline[2].Date)
	require.Equal(t, int64(2), summary.Timeline[2].Submissions)

	require.False(t, summary.CacheHit)
}

func TestCourseSummaryEmptyCourse(t *testing.T) {
	repo := newFakeSubmissionRepo()
	service := NewAnalyticsService(repo, &fakeAssignmentRepo{}, nil, time.Minute, testLogger())

	summary, err := service.CourseSummary(context.Background(), Actor{ID: 42, Role: models.RoleTeacher}, 7)
	require.NoError(t, err)

	require.Zero(t, summary.TotalSubmissions)
	require.Nil(t, summary.AverageGrade)
	require.Empty(t, summary.Timeline)
}

func TestCourseSummaryRequiresTeacher(t *testing.T) {
	service := NewAnalyticsService(newFakeSubmissionRepo(), &fakeAssignmentRepo{}, nil, time.Minute, testLogger())

	_, err := service.CourseSummary(context.Background(), Actor{ID: 10, Role: models.RoleStudent}, 7)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestCourseSummaryServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := newFakeSubmissionRepo()
	seedCourseSubmissions(t, repo)
	service := NewAnalyticsService(repo, courseAssignments(), client, time.Minute, testLogger())
	teacher := Actor{ID: 42, Role: models.RoleTeacher}

	first, err := service.CourseSummary(context.Background(), teacher, 7)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	// New rows are invisible until the TTL lapses.
	extra := models.Submission{AssignmentID: 4, StudentID: 30, CourseID: 7, CurrentVersion: 1, SubmittedAt: time.Now(), Status: models.SubmissionStatusSubmitted}
	require.NoError(t, repo.Create(context.Background(), &extra))

	second, err := service.CourseSummary(context.Background(), teacher, 7)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.TotalSubmissions, second.TotalSubmissions)

	mr.FastForward(2 * time.Minute)

	third, err := service.CourseSummary(context.Background(), teacher, 7)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, first.TotalSubmissions+1, third.TotalSubmissions)
}
