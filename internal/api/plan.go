package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/planfab/planfab/internal/auth"
	"github.com/planfab/planfab/internal/domain"
)

// signedURLTTL is how long document download links issued by the HTTP
// endpoints stay valid.
const signedURLTTL = time.Hour

type generatePlanRequest struct {
	Prompt string `json:"prompt"`
}

type generatePlanResponse struct {
	PlanID      string `json:"plan_id"`
	Title       string `json:"title"`
	DocumentURL string `json:"document_url"`
	Content     string `json:"content"`
}

type approvePlanRequest struct {
	PlanID  string `json:"plan_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

type approvePlanResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DocumentURL string `json:"document_url,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
}

// GeneratePlan produces a complete plan document from a single prompt,
// stores it, and returns a signed download URL.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		Error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	planID := uuid.NewString()

	doc, err := h.engine.Generate(r.Context(), req.Prompt)
	if err != nil {
		slog.Error("Plan generation failed", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to generate plan")
		return
	}

	path, err := h.docs.Upload(r.Context(), user.ID, planID, doc.Content)
	if err != nil {
		slog.Error("Plan document upload failed", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store plan document")
		return
	}
	url, err := h.docs.SignURL(r.Context(), path, signedURLTTL)
	if err != nil {
		slog.Error("Plan document sign failed", "user_id", user.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store plan document")
		return
	}

	JSON(w, http.StatusOK, generatePlanResponse{
		PlanID:      planID,
		Title:       doc.Title,
		DocumentURL: url,
		Content:     doc.Content,
	})
}

// ApprovePlan stores the final approved document and creates the plan and
// agent records that track what happens after approval.
func (h *Handler) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req approvePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlanID == "" || req.Title == "" || req.Content == "" {
		Error(w, http.StatusBadRequest, "plan_id, title and content are required")
		return
	}

	slog.Info("Approving plan", "user_id", user.ID, "plan_id", req.PlanID)

	path, err := h.docs.Upload(r.Context(), user.ID, req.PlanID, req.Content)
	if err != nil {
		slog.Error("Approved document upload failed", "user_id", user.ID, "plan_id", req.PlanID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to approve plan")
		return
	}
	url, err := h.docs.SignURL(r.Context(), path, signedURLTTL)
	if err != nil {
		slog.Error("Approved document sign failed", "user_id", user.ID, "plan_id", req.PlanID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to approve plan")
		return
	}

	now := time.Now()
	plan := &domain.Plan{
		ID:           req.PlanID,
		UserID:       user.ID,
		Title:        req.Title,
		DocumentURL:  url,
		DocumentPath: path,
		Status:       domain.PlanStatusApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	agent := &domain.Agent{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		PlanID:    plan.ID,
		Name:      req.Title,
		Status:    domain.AgentStatusInitialized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.CreatePlanWithAgent(r.Context(), plan, agent); err != nil {
		slog.Error("Failed to persist approved plan", "user_id", user.ID, "plan_id", plan.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to approve plan")
		return
	}

	slog.Info("Plan approved", "user_id", user.ID, "plan_id", plan.ID, "agent_id", agent.ID)
	JSON(w, http.StatusOK, approvePlanResponse{
		Success:     true,
		Message:     "Document approved successfully",
		DocumentURL: url,
		AgentID:     agent.ID,
	})
}

// RegisterRoutes registers the plan HTTP routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/plan/generate", h.GeneratePlan)
	r.Post("/api/plan/approve", h.ApprovePlan)
	r.Get("/api/plan/{plan_id}", h.GetPlan)
	r.Get("/api/agent", h.ListAgents)
	r.Get("/api/agent/{agent_id}", h.GetAgent)
}
