package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/kelas-go-api/internal/models"
)

// ErrVersionConflict signals a lost compare-and-swap race on the submission's
// current version. Callers should retry the operation against fresh state.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionRepository owns persistence for the submission aggregate,
// including its append-only version and feedback rows.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Resubmit(ctx context.Context, submission *models.Submission, expectedVersion int, snapshot *models.SubmissionVersion) error
	SaveWithFeedback(ctx context.Context, submission *models.Submission, entry *models.SubmissionFeedback) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Versions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("version ASC")
		}).
		Preload("FeedbackLog", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("graded_at ASC")
		})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("course_id = ?", courseID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// Create inserts the first version of a submission. The unique index on
// (assignment_id, student_id) is the authority on the one-per-pair invariant;
// a racing insert surfaces as gorm.ErrDuplicatedKey.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// Resubmit atomically archives the superseded version and advances the
// current one. The UPDATE is guarded by the version the caller read; if
// another resubmission won the race, no row matches and ErrVersionConflict is
// returned without touching history.
func (r *submissionRepository) Resubmit(ctx context.Context, submission *models.Submission, expectedVersion int, snapshot *models.SubmissionVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Submission{}).
			Where("id = ? AND current_version = ?", submission.ID, expectedVersion).
			Select("current_version", "text_content", "file_refs", "submitted_at", "is_late", "status").
			Updates(map[string]interface{}{
				"current_version": submission.CurrentVersion,
				"text_content":    submission.TextContent,
				"file_refs":       submission.FileRefs,
				"submitted_at":    submission.SubmittedAt,
				"is_late":         submission.IsLate,
				"status":          submission.Status,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		return tx.Create(snapshot).Error
	})
}

// SaveWithFeedback persists a grading pass: the updated current fields plus
// the appended feedback row, in one transaction.
func (r *submissionRepository) SaveWithFeedback(ctx context.Context, submission *models.Submission, entry *models.SubmissionFeedback) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Versions", "FeedbackLog").Save(submission).Error; err != nil {
			return err
		}

		return tx.Create(entry).Error
	})
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Versions", "FeedbackLog").Save(submission).Error
}

// Delete removes the aggregate and its append-only rows. Blob cleanup is the
// caller's concern.
func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionFeedback{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}
