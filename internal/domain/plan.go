package domain

import (
	"time"
)

// Plan statuses.
const (
	PlanStatusApproved = "approved"
)

// Agent statuses.
const (
	AgentStatusInitialized = "initialized"
)

// Plan is an approved plan document record.
type Plan struct {
	ID           string
	UserID       string
	Title        string
	DocumentURL  string
	DocumentPath string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Agent is derived from an approved plan and tracks the agent lifecycle
// that follows approval.
type Agent struct {
	ID        string
	UserID    string
	PlanID    string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanDocument is a generated plan artifact before it is persisted.
type PlanDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
