// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/planfab/planfab/internal/domain"
)

// Repository defines the interface for persisting plans, agents, and plan
// conversation checkpoints.
type Repository interface {
	// CreatePlanWithAgent inserts an approved plan and its derived agent
	// record in a single transaction.
	CreatePlanWithAgent(ctx context.Context, plan *domain.Plan, agent *domain.Agent) error

	// GetPlan retrieves a plan by id. Returns nil if not found.
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)

	// ListAgents retrieves all agents owned by a user, newest first.
	ListAgents(ctx context.Context, userID string) ([]*domain.Agent, error)

	// GetAgent retrieves an agent by id, scoped to its owner. Returns nil
	// if the agent does not exist or belongs to another user.
	GetAgent(ctx context.Context, agentID, userID string) (*domain.Agent, error)

	// SavePlanSession creates or updates a plan conversation checkpoint.
	SavePlanSession(ctx context.Context, session *domain.PlanSession) error

	// GetPlanSession retrieves a plan conversation checkpoint by session id.
	// Returns nil if not found.
	GetPlanSession(ctx context.Context, sessionID string) (*domain.PlanSession, error)

	// DeletePlanSession removes a plan conversation checkpoint.
	DeletePlanSession(ctx context.Context, sessionID string) error

	// CleanupExpiredPlanSessions removes checkpoints idle longer than ttl.
	CleanupExpiredPlanSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
