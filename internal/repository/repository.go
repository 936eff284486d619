package repository

import (
	"context"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

// TransitionRepository is the audit log of case status changes.
type TransitionRepository interface {
	AddTransition(ctx context.Context, t models.Transition) error
	ListTransitions(ctx context.Context, caseID string) ([]models.Transition, error)
	// LatestStatuses returns the most recent status per case id.
	LatestStatuses(ctx context.Context) (map[string]models.CaseStatus, error)
}
