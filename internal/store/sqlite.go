package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/planfab/planfab/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Mutex for plan session operations to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS plans (
		plan_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		document_url TEXT NOT NULL,
		document_path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'approved',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plans_user ON plans(user_id);

	CREATE TABLE IF NOT EXISTS agents (
		agent_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_id TEXT NOT NULL REFERENCES plans(plan_id),
		name TEXT,
		status TEXT NOT NULL DEFAULT 'initialized',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

	CREATE TABLE IF NOT EXISTS plan_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		questions_json TEXT,
		questions_asked INTEGER NOT NULL DEFAULT 0,
		needs_more_info INTEGER NOT NULL DEFAULT 0,
		plan_title TEXT,
		plan_content TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plan_sessions_updated ON plan_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreatePlanWithAgent inserts a plan and its derived agent in one transaction.
func (s *SQLiteStore) CreatePlanWithAgent(ctx context.Context, plan *domain.Plan, agent *domain.Agent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (plan_id, user_id, title, document_url, document_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.UserID, plan.Title, plan.DocumentURL, plan.DocumentPath,
		plan.Status, plan.CreatedAt.Unix(), plan.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (agent_id, user_id, plan_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, agent.UserID, agent.PlanID, agent.Name,
		agent.Status, agent.CreatedAt.Unix(), agent.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan and agent: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by id.
func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT plan_id, user_id, title, document_url, document_path, status, created_at, updated_at
		FROM plans WHERE plan_id = ?`

	row := s.db.QueryRowContext(ctx, query, planID)

	var plan domain.Plan
	var createdAt, updatedAt int64

	err := row.Scan(
		&plan.ID, &plan.UserID, &plan.Title, &plan.DocumentURL,
		&plan.DocumentPath, &plan.Status, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan row: %w", err)
	}

	plan.CreatedAt = time.Unix(createdAt, 0)
	plan.UpdatedAt = time.Unix(updatedAt, 0)

	return &plan, nil
}

// ListAgents retrieves all agents owned by a user, newest first.
func (s *SQLiteStore) ListAgents(ctx context.Context, userID string) ([]*domain.Agent, error) {
	query := `
		SELECT agent_id, user_id, plan_id, name, status, created_at, updated_at
		FROM agents WHERE user_id = ?
		ORDER BY created_at DESC, agent_id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

// GetAgent retrieves an agent by id, scoped to its owner.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID, userID string) (*domain.Agent, error) {
	query := `
		SELECT agent_id, user_id, plan_id, name, status, created_at, updated_at
		FROM agents WHERE agent_id = ? AND user_id = ?`

	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, agentID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var agent domain.Agent
	var name sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&agent.ID, &agent.UserID, &agent.PlanID, &name,
		&agent.Status, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}

	agent.Name = name.String
	agent.CreatedAt = time.Unix(createdAt, 0)
	agent.UpdatedAt = time.Unix(updatedAt, 0)
	return &agent, nil
}

// SavePlanSession creates or updates a plan conversation checkpoint.
func (s *SQLiteStore) SavePlanSession(ctx context.Context, session *domain.PlanSession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	var questionsJSON interface{}
	if len(session.CurrentQuestions) > 0 {
		data, err := json.Marshal(session.CurrentQuestions)
		if err != nil {
			return fmt.Errorf("marshal questions: %w", err)
		}
		questionsJSON = string(data)
	}

	var planTitle, planContent interface{}
	if session.PlanTitle != "" {
		planTitle = session.PlanTitle
	}
	if session.PlanContent != "" {
		planContent = session.PlanContent
	}

	query := `
		INSERT INTO plan_sessions (
			session_id, user_id, messages_json, questions_json,
			questions_asked, needs_more_info, plan_title, plan_content,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			messages_json = excluded.messages_json,
			questions_json = excluded.questions_json,
			questions_asked = excluded.questions_asked,
			needs_more_info = excluded.needs_more_info,
			plan_title = excluded.plan_title,
			plan_content = excluded.plan_content,
			updated_at = excluded.updated_at`

	err = s.execWithRetry(ctx, query,
		session.SessionID, session.UserID, string(messagesJSON), questionsJSON,
		session.QuestionsAsked, session.NeedsMoreInfo, planTitle, planContent,
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert plan session: %w", err)
	}
	return nil
}

// execWithRetry retries once on a SQLite concurrency error. The busy_timeout
// pragma covers most lock contention; this catches the stragglers.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil && isSQLiteConflictError(err) {
		time.Sleep(50 * time.Millisecond)
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	return err
}

// isSQLiteConflictError checks for SQLITE_BUSY or "database is locked"
// errors, the two forms of SQLite lock contention that warrant a retry.
func isSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// GetPlanSession retrieves a plan conversation checkpoint by session id.
func (s *SQLiteStore) GetPlanSession(ctx context.Context, sessionID string) (*domain.PlanSession, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		SELECT session_id, user_id, messages_json, questions_json,
		       questions_asked, needs_more_info, plan_title, plan_content,
		       created_at, updated_at
		FROM plan_sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.PlanSession
	var messagesJSON string
	var questionsJSON, planTitle, planContent sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.SessionID, &session.UserID, &messagesJSON, &questionsJSON,
		&session.QuestionsAsked, &session.NeedsMoreInfo, &planTitle, &planContent,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan session: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if questionsJSON.Valid {
		if err := json.Unmarshal([]byte(questionsJSON.String), &session.CurrentQuestions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}
	session.PlanTitle = planTitle.String
	session.PlanContent = planContent.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// DeletePlanSession removes a plan conversation checkpoint.
func (s *SQLiteStore) DeletePlanSession(ctx context.Context, sessionID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `DELETE FROM plan_sessions WHERE session_id = ?`
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("delete plan session: %w", err)
	}
	return nil
}

// CleanupExpiredPlanSessions removes checkpoints idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredPlanSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM plan_sessions WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired plan sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
