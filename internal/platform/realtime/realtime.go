// Package realtime carries live events from domain services to connected
// browsers. Services publish to a per-user channel; the WebSocket hub (and,
// across instances, Redis pub/sub) delivers them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userChannelPrefix = "user:"

// UserChannel names the channel that reaches every socket of one user.
func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// ParseUserChannel is the inverse of UserChannel.
func ParseUserChannel(channel string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Message is the envelope written to sockets and to Redis.
type Message struct {
	ID      string          `json:"id"`
	Origin  string          `json:"origin,omitempty"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

func NewMessage(origin, channel, event string, payload interface{}) (Message, error) {
	msg := Message{
		ID:      uuid.NewString(),
		Origin:  origin,
		Channel: channel,
		Event:   event,
		SentAt:  time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Sink receives messages that arrived from another transport.
type Sink interface {
	Deliver(msg Message)
}

// FanOut publishes to every publisher and reports all failures together.
// One failing transport does not stop the others.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event. Used when live delivery is switched off.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, interface{}) error { return nil }
