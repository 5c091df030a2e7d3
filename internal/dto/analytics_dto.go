package dto

import "time"

// GradeDistributionResponse maps score buckets (percent of max points) to counts.
type GradeDistributionResponse map[string]int64

// TimelinePoint counts submissions made on one calendar day.
type TimelinePoint struct {
	Date        string `json:"date"`
	Submissions int64  `json:"submissions"`
}

// CourseAnalyticsResponse summarizes submission activity for a course.
type CourseAnalyticsResponse struct {
	CourseID          uint                      `json:"course_id"`
	TotalSubmissions  int64                     `json:"total_submissions"`
	StatusCounts      map[string]int64          `json:"status_counts"`
	LateSubmissions   int64                     `json:"late_submissions"`
	GradedCount       int64                     `json:"graded_count"`
	AverageGrade      *float64                  `json:"average_grade"`
	GradeDistribution GradeDistributionResponse `json:"grade_distribution"`
	Timeline          []TimelinePoint           `json:"timeline"`
	GeneratedAt       time.Time                 `json:"generated_at"`
	CacheHit          bool                      `json:"cache_hit"`
}

// UploadResponse reports the stored file reference returned by the upload
// pipeline.
type UploadResponse struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
}
