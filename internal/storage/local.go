package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps plan documents on the local filesystem. It is a
// development stand-in for Supabase Storage; URLs point at the server's own
// /files/ route and carry no signature.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a filesystem-backed document store rooted at dir.
// baseURL is the server's externally visible address, e.g. "http://localhost:8080".
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory, for mounting a file server over it.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload stores a plan document under "<user_id>/<plan_id>.txt".
func (s *LocalStore) Upload(ctx context.Context, userID, planID, content string) (string, error) {
	path := filepath.Join(userID, planID+".txt")
	full := filepath.Join(s.dir, path)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create user document dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write plan document: %w", err)
	}

	slog.Info("Stored plan document locally", "path", path)
	return filepath.ToSlash(path), nil
}

// SignURL returns a plain URL to the /files/ route. Local documents do not
// expire.
func (s *LocalStore) SignURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	return s.baseURL + "/files/" + path, nil
}

// Download retrieves a stored plan document.
func (s *LocalStore) Download(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil {
		return "", fmt.Errorf("read plan document: %w", err)
	}
	return string(data), nil
}
