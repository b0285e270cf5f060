package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/planfab/planfab/internal/auth"
	"github.com/planfab/planfab/internal/domain"
)

type agentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type agentListResponse struct {
	Agents []agentResponse `json:"agents"`
	Count  int             `json:"count"`
}

type planResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	DocumentURL string    `json:"document_url"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAgentResponse(agent *domain.Agent) agentResponse {
	return agentResponse{
		ID:        agent.ID,
		UserID:    agent.UserID,
		PlanID:    agent.PlanID,
		Name:      agent.Name,
		Status:    agent.Status,
		CreatedAt: agent.CreatedAt,
		UpdatedAt: agent.UpdatedAt,
	}
}

// ListAgents returns all agents owned by the authenticated user, newest
// first.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	agents, err := h.repo.ListAgents(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to list agents", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	resp := agentListResponse{Agents: make([]agentResponse, 0, len(agents)), Count: len(agents)}
	for _, agent := range agents {
		resp.Agents = append(resp.Agents, toAgentResponse(agent))
	}
	JSON(w, http.StatusOK, resp)
}

// GetAgent returns a single agent. The agent must belong to the
// authenticated user; anything else reads as not found.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	agentID := chi.URLParam(r, "agent_id")
	if _, err := uuid.Parse(agentID); err != nil {
		Error(w, http.StatusBadRequest, "invalid agent id format")
		return
	}

	agent, err := h.repo.GetAgent(r.Context(), agentID, user.ID)
	if err != nil {
		slog.Error("Failed to get agent", "user_id", user.ID, "agent_id", agentID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get agent")
		return
	}
	if agent == nil {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}

	JSON(w, http.StatusOK, toAgentResponse(agent))
}

// GetPlan returns a single approved plan. Plans belonging to another user
// read as not found.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	planID := chi.URLParam(r, "plan_id")
	if _, err := uuid.Parse(planID); err != nil {
		Error(w, http.StatusBadRequest, "invalid plan id format")
		return
	}

	plan, err := h.repo.GetPlan(r.Context(), planID)
	if err != nil {
		slog.Error("Failed to get plan", "user_id", user.ID, "plan_id", planID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get plan")
		return
	}
	if plan == nil || plan.UserID != user.ID {
		Error(w, http.StatusNotFound, "plan not found")
		return
	}

	JSON(w, http.StatusOK, planResponse{
		ID:          plan.ID,
		UserID:      plan.UserID,
		Title:       plan.Title,
		DocumentURL: plan.DocumentURL,
		Status:      plan.Status,
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.UpdatedAt,
	})
}
