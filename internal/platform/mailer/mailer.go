// Package mailer renders and hands off outbound email. Delivery itself is
// done by a downstream mail relay consuming the queue the AMQPSender writes
// to; LogSender stands in during development.
package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is one email job.
type Message struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Template  string            `json:"template,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer binds templates to a Sender.
type Mailer struct {
	engine *TemplateEngine
	sender Sender
	from   string
}

func New(engine *TemplateEngine, sender Sender, from string) *Mailer {
	return &Mailer{engine: engine, sender: sender, from: from}
}

// SendTemplate renders templateID with data and sends it to to.
func (m *Mailer) SendTemplate(ctx context.Context, to, templateID string, data, metadata map[string]string) error {
	if to == "" {
		return fmt.Errorf("send %s: recipient is empty", templateID)
	}
	subject, body, err := m.engine.Render(templateID, data)
	if err != nil {
		return err
	}
	msg := Message{
		ID:        uuid.NewString(),
		From:      m.from,
		To:        to,
		Subject:   subject,
		Body:      body,
		Template:  templateID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateID, to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().
		Str("mail_id", msg.ID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("template", msg.Template).
		Str("body", msg.Body).
		Msg("mail (not delivered)")
	return nil
}

// RecordingSender keeps every message in memory. Tests use it to assert on
// outbound mail; Err makes every send fail.
type RecordingSender struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (s *RecordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *RecordingSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}
