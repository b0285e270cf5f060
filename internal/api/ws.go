package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/planfab/planfab/internal/auth"
	"github.com/planfab/planfab/internal/notify"
	"github.com/planfab/planfab/internal/plan"
)

// ChannelRegistry binds plan sessions to outbound channels.
type ChannelRegistry interface {
	Register(sessionID string, ch notify.Channel)
	Unregister(sessionID string)
	Send(ctx context.Context, sessionID string, message map[string]any)
	SendError(ctx context.Context, sessionID, errText, contextText string)
}

// WebSocketHandler runs conversational plan sessions over WebSocket.
type WebSocketHandler struct {
	engine        PlanEngine
	registry      ChannelRegistry
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(engine PlanEngine, registry ChannelRegistry, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		engine:        engine,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage represents inbound WebSocket message structure.
type wsMessage struct {
	Type     string `json:"type"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade. Each connection
// is one plan conversation: the session id is minted here and every
// notification for the conversation flows back over this socket.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", user.ID)
		return
	}

	sessionID := uuid.NewString()
	slog.Info("Plan WebSocket connected", "session_id", sessionID, "user_id", user.ID, "ip", r.RemoteAddr)

	h.registry.Register(sessionID, notify.NewWebSocketChannel(ws))
	defer h.registry.Unregister(sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, sessionID, user.ID)
	slog.Info("Plan WebSocket disconnected", "session_id", sessionID, "user_id", user.ID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID, userID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "session_id", sessionID, "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.registry.SendError(ctx, sessionID, "Invalid message", "messages must be JSON objects")
			continue
		}

		switch msg.Type {
		case "start_plan":
			if msg.Prompt == "" {
				h.registry.SendError(ctx, sessionID, "Invalid message", "start_plan requires a prompt")
				continue
			}
			if err := h.engine.DevelopPlan(ctx, sessionID, msg.Prompt, userID); err != nil {
				// The engine already notified the client; log and keep reading.
				slog.Error("Plan conversation failed", "session_id", sessionID, "error", err)
			}

		case "user_response":
			err := h.engine.UpdatePlan(ctx, sessionID, msg.Response)
			if errors.Is(err, plan.ErrInvalidSessionState) {
				h.registry.SendError(ctx, sessionID, "No pending questions", "start a plan before responding")
			} else if err != nil {
				slog.Error("Plan conversation failed", "session_id", sessionID, "error", err)
			}

		case "ping":
			h.registry.Send(ctx, sessionID, map[string]any{"type": "pong"})

		default:
			h.registry.SendError(ctx, sessionID, "Unknown message type", msg.Type)
		}
	}
}
