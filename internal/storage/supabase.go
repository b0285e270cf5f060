// Package storage persists plan documents in Supabase Storage and produces
// signed download URLs.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize limits storage API response bodies.
const maxResponseSize = 1 << 20 // 1MB

// Client is a thin client for the Supabase Storage HTTP API.
type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewClient creates a storage client for the given project. projectURL is
// the Supabase project base URL without a trailing slash.
func NewClient(projectURL, serviceKey, bucket string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(projectURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores a plan document under "<user_id>/<plan_id>.txt" and returns
// the object path. Existing objects are overwritten.
func (c *Client) Upload(ctx context.Context, userID, planID, content string) (string, error) {
	path := userID + "/" + planID + ".txt"
	url := c.baseURL + "/storage/v1/object/" + c.bucket + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(content)))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload plan document: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload plan document: %s", apiError(resp))
	}

	slog.Info("Uploaded plan document", "path", path)
	return path, nil
}

// SignURL creates a time-limited download URL for a stored object.
func (c *Client) SignURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	url := c.baseURL + "/storage/v1/object/sign/" + c.bucket + "/" + path

	body, err := json.Marshal(map[string]int{"expiresIn": int(expiresIn.Seconds())})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign plan document url: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sign plan document url: %s", apiError(resp))
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&signed); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if signed.SignedURL == "" {
		return "", fmt.Errorf("sign response missing signedURL")
	}

	return c.baseURL + "/storage/v1" + signed.SignedURL, nil
}

// Download retrieves a stored plan document.
func (c *Client) Download(ctx context.Context, path string) (string, error) {
	url := c.baseURL + "/storage/v1/object/" + c.bucket + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download plan document: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download plan document: %s", apiError(resp))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read plan document: %w", err)
	}
	return string(data), nil
}

func apiError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Debug("Failed to close response body", "error", err)
	}
}
