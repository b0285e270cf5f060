// Package notify pushes JSON-shaped session events to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Channel is an outbound duplex channel bound to a session, typically a
// WebSocket connection.
type Channel interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// binding pairs a channel with a write lock so concurrent sends for the same
// session never interleave, and a close never races a send.
type binding struct {
	ch     Channel
	mu     sync.Mutex
	closed bool
}

// Notifier maintains the session-id to channel registry. Delivery is
// best-effort: a failed send unbinds the session and is swallowed. At most
// one channel is bound per session id; sending to an unbound id is a no-op.
type Notifier struct {
	mu       sync.Mutex
	bindings map[string]*binding
}

// NewNotifier creates an empty registry.
func NewNotifier() *Notifier {
	return &Notifier{
		bindings: make(map[string]*binding),
	}
}

// Register binds a session to a live outbound channel, replacing and closing
// any prior binding for that id.
func (n *Notifier) Register(sessionID string, ch Channel) {
	n.mu.Lock()
	prior := n.bindings[sessionID]
	n.bindings[sessionID] = &binding{ch: ch}
	n.mu.Unlock()

	if prior != nil {
		prior.close()
	}
	slog.Info("Session channel registered", "session_id", sessionID)
}

// Unregister closes the channel if present and removes the binding.
func (n *Notifier) Unregister(sessionID string) {
	n.mu.Lock()
	b := n.bindings[sessionID]
	delete(n.bindings, sessionID)
	n.mu.Unlock()

	if b == nil {
		return
	}
	b.close()
	slog.Info("Session channel unregistered", "session_id", sessionID)
}

// Send stamps the message with the current timestamp and the session id (if
// absent), serializes it to JSON, and writes it to the bound channel. If the
// write fails the binding is removed; the caller is not informed.
func (n *Notifier) Send(ctx context.Context, sessionID string, message map[string]any) {
	n.mu.Lock()
	b := n.bindings[sessionID]
	n.mu.Unlock()

	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	message["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := message["session_id"]; !ok {
		message["session_id"] = sessionID
	}

	data, err := json.Marshal(message)
	if err != nil {
		slog.Error("Failed to marshal session message", "session_id", sessionID, "error", err)
		return
	}

	if err := b.ch.Send(ctx, data); err != nil {
		slog.Warn("Failed to send session message, removing channel", "session_id", sessionID, "error", err)
		b.closed = true
		n.mu.Lock()
		if n.bindings[sessionID] == b {
			delete(n.bindings, sessionID)
		}
		n.mu.Unlock()
	}
}

// SendError sends a standardized task.error message.
func (n *Notifier) SendError(ctx context.Context, sessionID, errText, contextText string) {
	message := map[string]any{
		"type":  "task.error",
		"error": errText,
	}
	if contextText != "" {
		message["context"] = contextText
	}
	n.Send(ctx, sessionID, message)
}

func (b *binding) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if err := b.ch.Close(); err != nil {
		slog.Debug("Failed to close session channel", "error", err)
	}
}
