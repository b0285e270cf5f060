// Package plan implements the conversational plan-generation engine.
//
// A plan conversation is a persisted state machine: each run evaluates the
// transcript, either asks clarifying questions and suspends (checkpointing
// its state keyed by session id), or drafts the final plan document. Resuming
// with the user's answer reloads the checkpoint and re-enters evaluation, so
// the wait for a human reply never holds a goroutine.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/planfab/planfab/internal/domain"
	"github.com/planfab/planfab/internal/llm"
)

// ErrInvalidSessionState indicates a resume call for a session that is not
// suspended awaiting a reply (unknown, already completed, or mid-run).
var ErrInvalidSessionState = errors.New("session is not awaiting a response")

// signedURLTTL is how long generated document links stay valid.
const signedURLTTL = time.Hour

// Notifier pushes session events to the connected client.
type Notifier interface {
	Send(ctx context.Context, sessionID string, message map[string]any)
	SendError(ctx context.Context, sessionID, errText, contextText string)
}

// Checkpoints persists suspended conversation state keyed by session id.
type Checkpoints interface {
	SavePlanSession(ctx context.Context, session *domain.PlanSession) error
	GetPlanSession(ctx context.Context, sessionID string) (*domain.PlanSession, error)
	DeletePlanSession(ctx context.Context, sessionID string) error
}

// Storage persists plan documents and produces retrievable URLs.
type Storage interface {
	Upload(ctx context.Context, userID, planID, content string) (string, error)
	SignURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
}

// Engine drives plan conversations.
type Engine struct {
	gateway     llm.Gateway
	notifier    Notifier
	checkpoints Checkpoints
	storage     Storage
	maxRounds   int
}

// NewEngine creates a plan conversation engine. maxRounds caps the number of
// clarifying-question rounds per session.
func NewEngine(gateway llm.Gateway, notifier Notifier, checkpoints Checkpoints, storage Storage, maxRounds int) (*Engine, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if checkpoints == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if storage == nil {
		return nil, errors.New("storage is required")
	}
	if maxRounds <= 0 {
		return nil, errors.New("maxRounds must be positive")
	}
	return &Engine{
		gateway:     gateway,
		notifier:    notifier,
		checkpoints: checkpoints,
		storage:     storage,
		maxRounds:   maxRounds,
	}, nil
}

// evaluation is the model's verdict on information sufficiency.
type evaluation struct {
	NeedsMoreInfo bool     `json:"needs_more_info"`
	Reasoning     string   `json:"reasoning"`
	Gaps          []string `json:"gaps"`
}

// questionList is the model's clarifying-question output.
type questionList struct {
	Questions []domain.Question `json:"questions"`
}

// DevelopPlan begins a new plan conversation. It returns once the run either
// completes (plan drafted or failed) or suspends awaiting the user's answer.
func (e *Engine) DevelopPlan(ctx context.Context, sessionID, prompt, userID string) error {
	now := time.Now()
	session := &domain.PlanSession{
		SessionID: sessionID,
		UserID:    userID,
		Messages: []domain.ConversationMessage{
			{Role: domain.RoleUser, Content: prompt},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	slog.Info("Plan conversation started", "session_id", sessionID, "user_id", userID)
	return e.run(ctx, session)
}

// UpdatePlan resumes a suspended conversation with the user's reply. It is
// only valid while the session is parked awaiting a response; otherwise it
// returns ErrInvalidSessionState.
func (e *Engine) UpdatePlan(ctx context.Context, sessionID, response string) error {
	session, err := e.checkpoints.GetPlanSession(ctx, sessionID)
	if err != nil {
		e.notifier.SendError(ctx, sessionID, "Plan generation failed", "could not restore the conversation")
		return fmt.Errorf("load plan session: %w", err)
	}
	if session == nil || !session.Awaiting() {
		return fmt.Errorf("%w: %s", ErrInvalidSessionState, sessionID)
	}

	asked, err := json.Marshal(session.CurrentQuestions)
	if err != nil {
		return fmt.Errorf("marshal asked questions: %w", err)
	}
	session.Messages = append(session.Messages,
		domain.ConversationMessage{Role: domain.RoleAssistant, Content: "Questions: " + string(asked)},
		domain.ConversationMessage{Role: domain.RoleUser, Content: response},
	)
	session.QuestionsAsked++
	session.CurrentQuestions = nil

	slog.Info("Plan conversation resumed", "session_id", sessionID, "questions_asked", session.QuestionsAsked)
	return e.run(ctx, session)
}

// run executes one pass of the state machine: evaluate, then either ask
// questions and suspend, or draft the final plan. Every fatal condition
// produces exactly one task.error notification before the error is returned.
func (e *Engine) run(ctx context.Context, session *domain.PlanSession) error {
	suspended, err := e.step(ctx, session)
	if err != nil {
		e.notifier.SendError(ctx, session.SessionID, "Plan generation failed", err.Error())
		if delErr := e.checkpoints.DeletePlanSession(ctx, session.SessionID); delErr != nil {
			slog.Warn("Failed to delete plan session after failure", "session_id", session.SessionID, "error", delErr)
		}
		slog.Error("Plan conversation failed", "session_id", session.SessionID, "error", err)
		return err
	}
	if suspended {
		slog.Info("Plan conversation suspended", "session_id", session.SessionID, "round", session.QuestionsAsked+1)
	}
	return nil
}

func (e *Engine) step(ctx context.Context, session *domain.PlanSession) (suspended bool, err error) {
	needsMore, gaps, err := e.evaluate(ctx, session)
	if err != nil {
		return false, err
	}
	session.NeedsMoreInfo = needsMore

	// The round cap takes priority over the sufficiency verdict so every
	// session terminates in bounded rounds.
	if session.QuestionsAsked >= e.maxRounds || !needsMore {
		return false, e.generatePlan(ctx, session)
	}

	questions, err := e.generateQuestions(ctx, session, gaps)
	if err != nil {
		return false, err
	}
	if len(questions) == 0 {
		// No questions to ask; never suspend on an empty list.
		session.NeedsMoreInfo = false
		return false, e.generatePlan(ctx, session)
	}

	session.CurrentQuestions = questions
	for _, q := range questions {
		e.notifier.Send(ctx, session.SessionID, map[string]any{
			"type":     "question",
			"question": map[string]any{"id": q.ID, "text": q.Text},
			"progress": map[string]any{
				"round":      session.QuestionsAsked + 1,
				"max_rounds": e.maxRounds,
			},
		})
	}

	if err := e.checkpoints.SavePlanSession(ctx, session); err != nil {
		return false, fmt.Errorf("checkpoint plan session: %w", err)
	}
	return true, nil
}

// evaluate asks the model whether the transcript contains enough information.
// Malformed output fails open: the session proceeds as if it had enough.
func (e *Engine) evaluate(ctx context.Context, session *domain.PlanSession) (bool, []string, error) {
	e.sendStatus(ctx, session.SessionID, "evaluating", "Reviewing what we know so far")

	raw, err := e.gateway.Complete(ctx, evaluateSystemPrompt, transcriptPrompt(session.Messages))
	if err != nil {
		return false, nil, fmt.Errorf("evaluate context: %w", err)
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		slog.Warn("Malformed evaluation output, assuming enough information", "session_id", session.SessionID, "error", err)
		return false, nil, nil
	}
	var verdict evaluation
	if err := decodeInto(obj, &verdict); err != nil {
		slog.Warn("Unexpected evaluation shape, assuming enough information", "session_id", session.SessionID, "error", err)
		return false, nil, nil
	}
	return verdict.NeedsMoreInfo, verdict.Gaps, nil
}

// generateQuestions asks the model for 1-3 clarifying questions. Malformed
// output abandons the question round and returns an empty list.
func (e *Engine) generateQuestions(ctx context.Context, session *domain.PlanSession, gaps []string) ([]domain.Question, error) {
	e.sendStatus(ctx, session.SessionID, "generating_questions", "Preparing follow-up questions")

	if len(gaps) == 0 {
		gaps = []string{defaultGap}
	}
	prompt := transcriptPrompt(session.Messages) +
		"\n\n## Information Gaps\n- " + strings.Join(gaps, "\n- ")

	raw, err := e.gateway.Complete(ctx, questionsSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		slog.Warn("Malformed question output, skipping question round", "session_id", session.SessionID, "error", err)
		return nil, nil
	}
	var list questionList
	if err := decodeInto(obj, &list); err != nil {
		slog.Warn("Unexpected question shape, skipping question round", "session_id", session.SessionID, "error", err)
		return nil, nil
	}

	questions := make([]domain.Question, 0, len(list.Questions))
	for i, q := range list.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// generatePlan drafts the final document, persists it, and notifies the
// client. Malformed output is fatal here: there is no safe default content.
func (e *Engine) generatePlan(ctx context.Context, session *domain.PlanSession) error {
	e.sendStatus(ctx, session.SessionID, "generating", "Drafting the plan document")

	raw, err := e.gateway.Complete(ctx, planSystemPrompt, transcriptPrompt(session.Messages))
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		return fmt.Errorf("parse plan document: %w", err)
	}
	var doc domain.PlanDocument
	if err := decodeInto(obj, &doc); err != nil {
		return fmt.Errorf("decode plan document: %w", err)
	}
	if doc.Title == "" || doc.Content == "" {
		return fmt.Errorf("plan document missing title or content")
	}

	session.PlanTitle = doc.Title
	session.PlanContent = doc.Content

	planID := uuid.NewString()
	path, err := e.storage.Upload(ctx, session.UserID, planID, doc.Content)
	if err != nil {
		return fmt.Errorf("store plan document: %w", err)
	}
	url, err := e.storage.SignURL(ctx, path, signedURLTTL)
	if err != nil {
		return fmt.Errorf("sign plan document url: %w", err)
	}

	e.notifier.Send(ctx, session.SessionID, map[string]any{
		"type": "document.update",
		"document": map[string]any{
			"title":   doc.Title,
			"content": doc.Content,
			"url":     url,
			"version": 1,
		},
	})
	e.notifier.Send(ctx, session.SessionID, map[string]any{
		"type":    "ready_for_approval",
		"message": "Your plan is ready for review",
	})

	if err := e.checkpoints.DeletePlanSession(ctx, session.SessionID); err != nil {
		slog.Warn("Failed to delete completed plan session", "session_id", session.SessionID, "error", err)
	}

	slog.Info("Plan document generated", "session_id", session.SessionID, "plan_id", planID, "title", doc.Title)
	return nil
}

func (e *Engine) sendStatus(ctx context.Context, sessionID, status, message string) {
	e.notifier.Send(ctx, sessionID, map[string]any{
		"type":    "status",
		"status":  status,
		"message": message,
	})
}

// transcriptPrompt formats the conversation as alternating "User:" and
// "Assistant:" lines for the model.
func transcriptPrompt(messages []domain.ConversationMessage) string {
	var b strings.Builder
	b.WriteString("## Conversation History\n")
	for _, m := range messages {
		if m.Role == domain.RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// decodeInto converts an extracted JSON object into a typed value.
func decodeInto(obj map[string]any, v any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
