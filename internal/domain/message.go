// Package domain defines the core types shared across the planfab service.
package domain

// Message roles in a plan conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is a single entry in a plan conversation transcript.
// The transcript is append-only and chronologically ordered.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is a clarifying question the assistant asks the user while
// gathering plan requirements.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
