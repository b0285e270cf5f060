package domain

import (
	"time"
)

// PlanSession is the durable state of one in-progress plan conversation.
// It is the checkpoint persisted when the engine suspends awaiting a user
// reply, keyed by SessionID, and reloaded on resume.
type PlanSession struct {
	SessionID      string
	UserID         string
	Messages       []ConversationMessage
	QuestionsAsked int
	NeedsMoreInfo  bool

	// CurrentQuestions is non-empty only while the session is suspended
	// awaiting a reply.
	CurrentQuestions []Question

	// PlanTitle and PlanContent are both set at terminal success, or both
	// empty.
	PlanTitle   string
	PlanContent string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Awaiting reports whether the session is suspended waiting for the user to
// answer pending questions.
func (s *PlanSession) Awaiting() bool {
	return len(s.CurrentQuestions) > 0
}
