package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/planfab/planfab/internal/auth"
	"github.com/planfab/planfab/internal/domain"
)

// fakeEngine scripts the plan engine for handler tests. The mutex makes it
// safe to inspect from the test goroutine while a server goroutine calls it.
type fakeEngine struct {
	mu         sync.Mutex
	doc        *domain.PlanDocument
	generated  string
	develops   []string
	updates    []string
	generErr   error
	developErr error
	updateErr  error
}

func (e *fakeEngine) Generate(ctx context.Context, prompt string) (*domain.PlanDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generated = prompt
	return e.doc, e.generErr
}

func (e *fakeEngine) DevelopPlan(ctx context.Context, sessionID, prompt, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.develops = append(e.develops, prompt)
	return e.developErr
}

func (e *fakeEngine) UpdatePlan(ctx context.Context, sessionID, response string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = append(e.updates, response)
	return e.updateErr
}

func (e *fakeEngine) developedPrompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.develops...)
}

// fakeDocs is an in-memory DocumentStore.
type fakeDocs struct {
	uploads   map[string]string
	uploadErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{uploads: make(map[string]string)}
}

func (d *fakeDocs) Upload(ctx context.Context, userID, planID, content string) (string, error) {
	if d.uploadErr != nil {
		return "", d.uploadErr
	}
	path := userID + "/" + planID + ".txt"
	d.uploads[path] = content
	return path, nil
}

func (d *fakeDocs) SignURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	return "https://signed.example/" + path, nil
}

// fakeRepo records CreatePlanWithAgent calls and stubs the rest.
type fakeRepo struct {
	plans     []*domain.Plan
	agents    []*domain.Agent
	createErr error
	listErr   error
	pingErr   error
}

func (r *fakeRepo) CreatePlanWithAgent(ctx context.Context, plan *domain.Plan, agent *domain.Agent) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.plans = append(r.plans, plan)
	r.agents = append(r.agents, agent)
	return nil
}

func (r *fakeRepo) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	for _, p := range r.plans {
		if p.ID == planID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListAgents(ctx context.Context, userID string) ([]*domain.Agent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var owned []*domain.Agent
	for i := len(r.agents) - 1; i >= 0; i-- {
		if r.agents[i].UserID == userID {
			owned = append(owned, r.agents[i])
		}
	}
	return owned, nil
}

func (r *fakeRepo) GetAgent(ctx context.Context, agentID, userID string) (*domain.Agent, error) {
	for _, a := range r.agents {
		if a.ID == agentID && a.UserID == userID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) SavePlanSession(ctx context.Context, session *domain.PlanSession) error {
	return nil
}

func (r *fakeRepo) GetPlanSession(ctx context.Context, sessionID string) (*domain.PlanSession, error) {
	return nil, nil
}

func (r *fakeRepo) DeletePlanSession(ctx context.Context, sessionID string) error { return nil }

func (r *fakeRepo) CleanupExpiredPlanSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error                   { return nil }

func authedRequest(method, target string, body []byte) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := auth.WithUser(r.Context(), &auth.User{ID: "user-1", Role: "authenticated"})
	return r.WithContext(ctx)
}

func TestGeneratePlan(t *testing.T) {
	engine := &fakeEngine{doc: &domain.PlanDocument{Title: "Launch Plan", Content: "# Plan body"}}
	docs := newFakeDocs()
	h := NewHandler(&fakeRepo{}, engine, docs)

	body, _ := json.Marshal(map[string]string{"prompt": "build a rocket"})
	w := httptest.NewRecorder()
	h.GeneratePlan(w, authedRequest(http.MethodPost, "/api/plan/generate", body))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp generatePlanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Title != "Launch Plan" {
		t.Errorf("Expected title Launch Plan, got %q", resp.Title)
	}
	if resp.PlanID == "" {
		t.Error("Expected a plan id")
	}
	if resp.DocumentURL != "https://signed.example/user-1/"+resp.PlanID+".txt" {
		t.Errorf("Unexpected document url %q", resp.DocumentURL)
	}
	if engine.generated != "build a rocket" {
		t.Errorf("Expected prompt forwarded, got %q", engine.generated)
	}
	if len(docs.uploads) != 1 {
		t.Errorf("Expected document uploaded, got %d", len(docs.uploads))
	}
}

func TestGeneratePlanRequiresPrompt(t *testing.T) {
	h := NewHandler(&fakeRepo{}, &fakeEngine{}, newFakeDocs())

	body, _ := json.Marshal(map[string]string{"prompt": "   "})
	w := httptest.NewRecorder()
	h.GeneratePlan(w, authedRequest(http.MethodPost, "/api/plan/generate", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestGeneratePlanRequiresAuth(t *testing.T) {
	h := NewHandler(&fakeRepo{}, &fakeEngine{}, newFakeDocs())

	body, _ := json.Marshal(map[string]string{"prompt": "x"})
	w := httptest.NewRecorder()
	h.GeneratePlan(w, httptest.NewRequest(http.MethodPost, "/api/plan/generate", bytes.NewReader(body)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestGeneratePlanEngineFailure(t *testing.T) {
	engine := &fakeEngine{generErr: errors.New("model unavailable")}
	h := NewHandler(&fakeRepo{}, engine, newFakeDocs())

	body, _ := json.Marshal(map[string]string{"prompt": "x"})
	w := httptest.NewRecorder()
	h.GeneratePlan(w, authedRequest(http.MethodPost, "/api/plan/generate", body))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestApprovePlan(t *testing.T) {
	repo := &fakeRepo{}
	docs := newFakeDocs()
	h := NewHandler(repo, &fakeEngine{}, docs)

	body, _ := json.Marshal(approvePlanRequest{
		PlanID:  "plan-1",
		Title:   "Launch Plan",
		Content: "# Final body",
		Version: 3,
	})
	w := httptest.NewRecorder()
	h.ApprovePlan(w, authedRequest(http.MethodPost, "/api/plan/approve", body))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp approvePlanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success")
	}
	if resp.AgentID == "" {
		t.Error("Expected an agent id")
	}

	if len(repo.plans) != 1 || len(repo.agents) != 1 {
		t.Fatalf("Expected plan and agent persisted, got %d/%d", len(repo.plans), len(repo.agents))
	}
	plan := repo.plans[0]
	if plan.ID != "plan-1" || plan.Status != domain.PlanStatusApproved {
		t.Errorf("Unexpected plan record %+v", plan)
	}
	agent := repo.agents[0]
	if agent.PlanID != "plan-1" || agent.Status != domain.AgentStatusInitialized {
		t.Errorf("Unexpected agent record %+v", agent)
	}
	if agent.Name != "Launch Plan" {
		t.Errorf("Expected agent named after the plan, got %q", agent.Name)
	}
	if docs.uploads["user-1/plan-1.txt"] != "# Final body" {
		t.Errorf("Expected final content stored, got %q", docs.uploads["user-1/plan-1.txt"])
	}
}

func TestApprovePlanValidatesBody(t *testing.T) {
	h := NewHandler(&fakeRepo{}, &fakeEngine{}, newFakeDocs())

	body, _ := json.Marshal(approvePlanRequest{PlanID: "plan-1"})
	w := httptest.NewRecorder()
	h.ApprovePlan(w, authedRequest(http.MethodPost, "/api/plan/approve", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestApprovePlanRepoFailure(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("constraint violation")}
	h := NewHandler(repo, &fakeEngine{}, newFakeDocs())

	body, _ := json.Marshal(approvePlanRequest{PlanID: "p", Title: "T", Content: "c", Version: 1})
	w := httptest.NewRecorder()
	h.ApprovePlan(w, authedRequest(http.MethodPost, "/api/plan/approve", body))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestApprovePlanUploadFailure(t *testing.T) {
	docs := newFakeDocs()
	docs.uploadErr = errors.New("bucket missing")
	repo := &fakeRepo{}
	h := NewHandler(repo, &fakeEngine{}, docs)

	body, _ := json.Marshal(approvePlanRequest{PlanID: "p", Title: "T", Content: "c", Version: 1})
	w := httptest.NewRecorder()
	h.ApprovePlan(w, authedRequest(http.MethodPost, "/api/plan/approve", body))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if len(repo.plans) != 0 {
		t.Error("Expected nothing persisted when upload fails")
	}
}
