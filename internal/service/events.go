package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Lifecycle event types published on the internal event stream.
const (
	EventSubmissionCreated     = "submission.created"
	EventSubmissionResubmitted = "submission.resubmitted"
	EventSubmissionGraded      = "submission.graded"
	EventSubmissionReturned    = "submission.returned"
	EventSubmissionDeleted     = "submission.deleted"
)

// SubmissionEvent describes one lifecycle transition of a submission.
type SubmissionEvent struct {
	Type         string    `json:"type"`
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	CourseID     uint      `json:"course_id"`
	Version      int       `json:"version"`
	ActorID      uint      `json:"actor_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher fans submission lifecycle events out to interested
// consumers. Publishing is best-effort; failures never fail the operation
// that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent)
}

type natsEventPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        zerolog.Logger
}

// NewNATSEventPublisher constructs a publisher writing to
// "<prefix>.<event type>" subjects.
func NewNATSEventPublisher(conn *nats.Conn, subjectPrefix string, logger zerolog.Logger) EventPublisher {
	prefix := strings.Trim(subjectPrefix, ".")
	if prefix == "" {
		prefix = "kelas"
	}

	return &natsEventPublisher{
		conn:          conn,
		subjectPrefix: prefix,
		logger:        logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) Publish(_ context.Context, event SubmissionEvent) {
	if p.conn == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to encode submission event")
		return
	}

	subject := p.subjectPrefix + "." + event.Type
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish submission event")
	}
}
