// Package api provides HTTP handlers for the planfab API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/planfab/planfab/internal/domain"
	"github.com/planfab/planfab/internal/store"
)

// PlanEngine drives plan generation, both one-shot and conversational.
type PlanEngine interface {
	Generate(ctx context.Context, prompt string) (*domain.PlanDocument, error)
	DevelopPlan(ctx context.Context, sessionID, prompt, userID string) error
	UpdatePlan(ctx context.Context, sessionID, response string) error
}

// DocumentStore persists plan documents and produces signed URLs.
type DocumentStore interface {
	Upload(ctx context.Context, userID, planID, content string) (string, error)
	SignURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
}

// Handler provides common handler utilities.
type Handler struct {
	repo   store.Repository
	engine PlanEngine
	docs   DocumentStore
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, engine PlanEngine, docs DocumentStore) *Handler {
	return &Handler{
		repo:   repo,
		engine: engine,
		docs:   docs,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
