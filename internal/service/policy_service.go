package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/kelas-go-api/internal/models"
	"github.com/noah-isme/kelas-go-api/internal/repository"
)

// PolicyResolver looks up the grading and submission policy of an assignment.
// Pure projection; it never mutates the registry.
type PolicyResolver interface {
	Resolve(ctx context.Context, assignmentID uint) (models.GradingPolicy, error)
}

type policyResolver struct {
	assignments repository.AssignmentRepository
	logger      zerolog.Logger
}

// NewPolicyResolver constructs a PolicyResolver backed by the assignment registry.
func NewPolicyResolver(assignments repository.AssignmentRepository, logger zerolog.Logger) PolicyResolver {
	return &policyResolver{
		assignments: assignments,
		logger:      logger.With().Str("component", "policy_resolver").Logger(),
	}
}

func (r *policyResolver) Resolve(ctx context.Context, assignmentID uint) (models.GradingPolicy, error) {
	assignment, err := r.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradingPolicy{}, ErrAssignmentNotFound
		}
		return models.GradingPolicy{}, err
	}

	return assignment.Policy(), nil
}
