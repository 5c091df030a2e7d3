package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/kelas-go-api/internal/dto"
	"github.com/noah-isme/kelas-go-api/internal/models"
	"github.com/noah-isme/kelas-go-api/internal/repository"
)

// AnalyticsService derives read-only submission summaries for a course. No
// independent state; everything is recomputed from the submission store and
// cached briefly in Redis.
type AnalyticsService interface {
	CourseSummary(ctx context.Context, actor Actor, courseID uint) (dto.CourseAnalyticsResponse, error)
}

type analyticsService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		submissions: submissions,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
		now:         time.Now,
	}
}

func (s *analyticsService) CourseSummary(ctx context.Context, actor Actor, courseID uint) (dto.CourseAnalyticsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/kelas-go-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.course_summary")
	span.SetAttributes(attribute.Int64("analytics.course_id", int64(courseID)))
	defer span.End()

	if actor.Role != models.RoleTeacher {
		return dto.CourseAnalyticsResponse{}, ErrNotOwner
	}

	cacheKey := fmt.Sprintf("analytics:course:%d", courseID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.CourseAnalyticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
	}

	submissions, err := s.submissions.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_submissions_failed")
		return dto.CourseAnalyticsResponse{}, err
	}

	maxPoints, err := s.maxPointsByAssignment(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_assignments_failed")
		return dto.CourseAnalyticsResponse{}, err
	}

	summary := s.buildSummary(courseID, submissions, maxPoints)
	span.SetAttributes(attribute.Int("analytics.submission_count", len(submissions)))

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *analyticsService) maxPointsByAssignment(ctx context.Context, courseID uint) (map[uint]float64, error) {
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	maxPoints := make(map[uint]float64, len(assignments))
	for _, assignment := range assignments {
		maxPoints[assignment.ID] = assignment.Policy().EffectiveMaxPoints()
	}

	return maxPoints, nil
}

func (s *analyticsService) buildSummary(courseID uint, submissions []models.Submission, maxPoints map[uint]float64) dto.CourseAnalyticsResponse {
	statusCounts := map[string]int64{
		models.SubmissionStatusSubmitted:   0,
		models.SubmissionStatusGraded:      0,
		models.SubmissionStatusReturned:    0,
		models.SubmissionStatusResubmitted: 0,
	}
	distribution := dto.GradeDistributionResponse{
		"90-100": 0,
		"80-89":  0,
		"70-79":  0,
		"60-69":  0,
		"0-59":   0,
	}

	var late, graded int64
	var gradeSum float64
	daily := map[string]int64{}

	for _, submission := range submissions {
		statusCounts[submission.Status]++

		if submission.IsLate {
			late++
		}

		if submission.Grade != nil {
			graded++
			gradeSum += *submission.Grade
			bucketGrade(distribution, *submission.Grade, maxPoints[submission.AssignmentID])
		}

		day := submission.SubmittedAt.UTC().Format("2006-01-02")
		daily[day]++
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	timeline := make([]dto.TimelinePoint, 0, len(days))
	for _, day := range days {
		timeline = append(timeline, dto.TimelinePoint{Date: day, Submissions: daily[day]})
	}

	var average *float64
	if graded > 0 {
		value := gradeSum / float64(graded)
		average = &value
	}

	return dto.CourseAnalyticsResponse{
		CourseID:          courseID,
		TotalSubmissions:  int64(len(submissions)),
		StatusCounts:      statusCounts,
		LateSubmissions:   late,
		GradedCount:       graded,
		AverageGrade:      average,
		GradeDistribution: distribution,
		Timeline:          timeline,
		GeneratedAt:       s.now(),
		CacheHit:          false,
	}
}

// bucketGrade tallies the grade as a percentage of the assignment's point
// scale, so a 45/50 lands in the same bucket as a 90/100.
func bucketGrade(distribution dto.GradeDistributionResponse, grade, maxPoints float64) {
	if maxPoints <= 0 {
		maxPoints = 100
	}
	percent := grade / maxPoints * 100

	switch {
	case percent >= 90:
		distribution["90-100"]++
	case percent >= 80:
		distribution["80-89"]++
	case percent >= 70:
		distribution["70-79"]++
	case percent >= 60:
		distribution["60-69"]++
	default:
		distribution["0-59"]++
	}
}
