package service

import (
	"context"
	"io"
	"mime/multipart"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/kelas-go-api/internal/models"
	"github.com/noah-isme/kelas-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeSubmissionRepo is an in-memory SubmissionRepository honoring the same
// invariants as the real store: unique (assignment, student) pairs and a
// compare-and-swap on the current version.
type fakeSubmissionRepo struct {
	mu          sync.Mutex
	nextID      uint
	submissions map[uint]*models.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1, submissions: map[uint]*models.Submission{}}
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return *submission, nil
}

func (f *fakeSubmissionRepo) GetByAssignmentAndStudent(_ context.Context, assignmentID, studentID uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return *submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) ListByAssignment(_ context.Context, assignmentID uint) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []models.Submission
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID {
			result = append(result, *submission)
		}
	}
	return result, nil
}

func (f *fakeSubmissionRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []models.Submission
	for _, submission := range f.submissions {
		if submission.CourseID == courseID {
			result = append(result, *submission)
		}
	}
	return result, nil
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}

	submission.ID = f.nextID
	f.nextID++
	clone := *submission
	f.submissions[clone.ID] = &clone
	return nil
}

func (f *fakeSubmissionRepo) Resubmit(_ context.Context, submission *models.Submission, expectedVersion int, snapshot *models.SubmissionVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.submissions[submission.ID]
	if !ok || current.CurrentVersion != expectedVersion {
		return repository.ErrVersionConflict
	}

	current.CurrentVersion = submission.CurrentVersion
	current.TextContent = submission.TextContent
	current.FileRefs = submission.FileRefs
	current.SubmittedAt = submission.SubmittedAt
	current.IsLate = submission.IsLate
	current.Status = submission.Status
	current.Versions = append(current.Versions, *snapshot)
	return nil
}

func (f *fakeSubmissionRepo) SaveWithFeedback(_ context.Context, submission *models.Submission, entry *models.SubmissionFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.submissions[submission.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}

	versions := current.Versions
	feedbackLog := current.FeedbackLog
	*current = *submission
	current.Versions = versions
	current.FeedbackLog = append(feedbackLog, *entry)
	return nil
}

func (f *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.submissions[submission.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}

	versions := current.Versions
	feedbackLog := current.FeedbackLog
	*current = *submission
	current.Versions = versions
	current.FeedbackLog = feedbackLog
	return nil
}

func (f *fakeSubmissionRepo) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.submissions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.submissions, id)
	return nil
}

func (f *fakeSubmissionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

// fakeAssignmentRepo is an in-memory assignment registry.
type fakeAssignmentRepo struct {
	assignments map[uint]models.Assignment
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Assignment, error) {
	var result []models.Assignment
	for _, assignment := range f.assignments {
		if assignment.CourseID == courseID {
			result = append(result, assignment)
		}
	}
	return result, nil
}

// stubPolicyResolver serves a fixed policy per assignment ID.
type stubPolicyResolver struct {
	policies map[uint]models.GradingPolicy
}

func (s *stubPolicyResolver) Resolve(_ context.Context, assignmentID uint) (models.GradingPolicy, error) {
	policy, ok := s.policies[assignmentID]
	if !ok {
		return models.GradingPolicy{}, ErrAssignmentNotFound
	}
	return policy, nil
}

// stubUploadService hands back a deterministic ref per file without touching
// any real storage.
type stubUploadService struct {
	err error
}

func (s *stubUploadService) Store(_ context.Context, file *multipart.FileHeader) (models.FileRef, error) {
	if s.err != nil {
		return models.FileRef{}, s.err
	}
	return models.FileRef{
		StorageName:  "kelas/" + file.Filename,
		OriginalName: file.Filename,
		URL:          "https://cdn.test/" + file.Filename,
		SizeBytes:    file.Size,
		MimeType:     "application/pdf",
	}, nil
}

// stubStorage records deletions so tests can assert blob cleanup.
type stubStorage struct {
	mu      sync.Mutex
	deleted []string
	upErr   error
	delErr  error
}

func (s *stubStorage) Upload(_ context.Context, name string, _ io.Reader) (string, string, error) {
	if s.upErr != nil {
		return "", "", s.upErr
	}
	return "https://cdn.test/" + name, "kelas/" + name, nil
}

func (s *stubStorage) Delete(_ context.Context, storageName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, storageName)
	return s.delErr
}

// recordingEvents captures published lifecycle events.
type recordingEvents struct {
	mu     sync.Mutex
	events []SubmissionEvent
}

func (r *recordingEvents) Publish(_ context.Context, event SubmissionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}
