package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func (c *fakeChannel) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.sent))
	for _, data := range c.sent {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("Failed to decode sent message: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestSendStampsMessage(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)

	n.Send(context.Background(), "s1", map[string]any{"type": "status"})

	msgs := ch.messages(t)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0]["session_id"] != "s1" {
		t.Errorf("Expected session_id stamped, got %v", msgs[0]["session_id"])
	}
	ts, ok := msgs[0]["timestamp"].(string)
	if !ok {
		t.Fatalf("Expected timestamp string, got %T", msgs[0]["timestamp"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("Expected RFC3339 timestamp, got %q", ts)
	}
}

func TestSendKeepsExplicitSessionID(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)

	n.Send(context.Background(), "s1", map[string]any{"type": "status", "session_id": "other"})

	msgs := ch.messages(t)
	if msgs[0]["session_id"] != "other" {
		t.Errorf("Expected explicit session_id preserved, got %v", msgs[0]["session_id"])
	}
}

func TestSendToUnboundSessionIsNoOp(t *testing.T) {
	n := NewNotifier()
	// Must not panic or block.
	n.Send(context.Background(), "missing", map[string]any{"type": "status"})
}

func TestSendFailureRemovesBinding(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{sendErr: errors.New("broken pipe")}
	n.Register("s1", ch)

	n.Send(context.Background(), "s1", map[string]any{"type": "status"})

	// The binding is gone; a fresh channel can take over the id.
	ch2 := &fakeChannel{}
	n.Register("s1", ch2)
	n.Send(context.Background(), "s1", map[string]any{"type": "status"})
	if len(ch2.messages(t)) != 1 {
		t.Errorf("Expected replacement channel to receive message")
	}
}

func TestRegisterReplacesAndClosesPrior(t *testing.T) {
	n := NewNotifier()
	first := &fakeChannel{}
	second := &fakeChannel{}

	n.Register("s1", first)
	n.Register("s1", second)

	if !first.closed {
		t.Error("Expected prior channel closed on replacement")
	}

	n.Send(context.Background(), "s1", map[string]any{"type": "status"})
	if len(first.messages(t)) != 0 {
		t.Error("Expected replaced channel to receive nothing")
	}
	if len(second.messages(t)) != 1 {
		t.Error("Expected new channel to receive message")
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)
	n.Unregister("s1")

	if !ch.closed {
		t.Error("Expected channel closed on unregister")
	}
	n.Send(context.Background(), "s1", map[string]any{"type": "status"})
	if len(ch.messages(t)) != 0 {
		t.Error("Expected no delivery after unregister")
	}
}

func TestUnregisterUnknownSession(t *testing.T) {
	n := NewNotifier()
	n.Unregister("missing")
}

func TestSendErrorShape(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)

	n.SendError(context.Background(), "s1", "Plan generation failed", "model unavailable")

	msgs := ch.messages(t)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0]["type"] != "task.error" {
		t.Errorf("Expected type task.error, got %v", msgs[0]["type"])
	}
	if msgs[0]["error"] != "Plan generation failed" {
		t.Errorf("Expected error text, got %v", msgs[0]["error"])
	}
	if msgs[0]["context"] != "model unavailable" {
		t.Errorf("Expected context text, got %v", msgs[0]["context"])
	}
}

func TestSendErrorOmitsEmptyContext(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)

	n.SendError(context.Background(), "s1", "failed", "")

	msgs := ch.messages(t)
	if _, ok := msgs[0]["context"]; ok {
		t.Error("Expected context omitted when empty")
	}
}

func TestConcurrentSendAndUnregister(t *testing.T) {
	n := NewNotifier()
	ch := &fakeChannel{}
	n.Register("s1", ch)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Send(context.Background(), "s1", map[string]any{"type": "status"})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.Unregister("s1")
	}()
	wg.Wait()
}
