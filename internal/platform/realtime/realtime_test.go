package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type recordingPublisher struct {
	calls []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, _ interface{}) error {
	p.calls = append(p.calls, channel+"|"+event)
	return p.err
}

func TestUserChannel_RoundTrip(t *testing.T) {
	id := uuid.New()
	ch := UserChannel(id)
	if !strings.HasPrefix(ch, "user:") {
		t.Fatalf("unexpected channel %q", ch)
	}
	got, ok := ParseUserChannel(ch)
	if !ok || got != id {
		t.Errorf("ParseUserChannel(%q) = %v, %v", ch, got, ok)
	}

	for _, bad := range []string{"", "user:", "user:not-a-uuid", "order:" + id.String()} {
		if _, ok := ParseUserChannel(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("node-a", "user:1", "notification.created", map[string]string{"title": "Order placed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" || msg.SentAt.IsZero() {
		t.Errorf("expected id and timestamp, got %+v", msg)
	}
	var payload map[string]string
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["title"] != "Order placed" {
		t.Errorf("unexpected payload %v", payload)
	}

	if _, err := NewMessage("", "user:1", "bad", make(chan int)); err == nil {
		t.Error("expected error for unencodable payload")
	}
}

func TestFanOut_PublishesToAllAndJoinsErrors(t *testing.T) {
	first := &recordingPublisher{err: errors.New("redis down")}
	second := &recordingPublisher{}

	err := FanOut{first, second}.Publish(context.Background(), "user:1", "notification.created", nil)
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(second.calls) != 1 {
		t.Errorf("expected second publisher to run despite first failing, got %d calls", len(second.calls))
	}
}

func TestFanOut_Empty(t *testing.T) {
	if err := (FanOut{}).Publish(context.Background(), "user:1", "x", nil); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if err := (Discard{}).Publish(context.Background(), "user:1", "x", nil); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
