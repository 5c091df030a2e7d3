package service

import "errors"

// Sentinel errors surfaced to handlers. Each maps to one branch of the
// handler error switch; domain-rule failures carry enough text for the UI to
// explain why the request was refused.
var (
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrNotOwner indicates the caller may not act on this record.
	ErrNotOwner = errors.New("caller does not own this resource")
	// ErrAssignmentUnpublished indicates submissions are not being accepted yet.
	ErrAssignmentUnpublished = errors.New("assignment is not published")
	// ErrDeadlinePassed indicates the due date has passed and late work is refused.
	ErrDeadlinePassed = errors.New("deadline passed and late submissions are not allowed")
	// ErrContentRequired indicates the payload does not satisfy the submission type.
	ErrContentRequired = errors.New("submission content does not match the required type")
	// ErrResubmissionNotAllowed indicates the assignment forbids replacement submits.
	ErrResubmissionNotAllowed = errors.New("resubmission is not allowed for this assignment")
	// ErrResubmissionLimit indicates the resubmission quota is exhausted.
	ErrResubmissionLimit = errors.New("resubmission limit reached")
	// ErrResubmissionWindowClosed indicates the resubmission deadline has passed.
	ErrResubmissionWindowClosed = errors.New("resubmission window closed")
	// ErrScoreOutOfRange indicates a raw score outside [0, max points].
	ErrScoreOutOfRange = errors.New("score is outside the assignment point range")
	// ErrNotGraded indicates a status transition that requires a graded submission.
	ErrNotGraded = errors.New("submission has not been graded")
	// ErrVersionConflict indicates a concurrent modification lost a race;
	// the caller should retry.
	ErrVersionConflict = errors.New("submission was modified concurrently")
)

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	ID   uint
	Role string
}
