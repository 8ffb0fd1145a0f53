package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const (
	defaultConfirmTimeout = 5 * time.Second
	mailRoutingKey        = "mail.send"
)

// AMQPSender publishes mail jobs as persistent JSON messages to a durable
// direct exchange and waits for the broker's publisher confirm.
type AMQPSender struct {
	url            string
	exchange       string
	confirmTimeout time.Duration
	logger         zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	confirm chan amqp.Confirmation
}

func NewAMQPSender(url, exchange string, logger zerolog.Logger) (*AMQPSender, error) {
	s := &AMQPSender{
		url:            url,
		exchange:       exchange,
		confirmTimeout: defaultConfirmTimeout,
		logger:         logger,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connectLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSender) connectLocked() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", s.exchange, err)
	}
	if _, err := ch.QueueDeclare(s.exchange+".outbox", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare mail queue: %w", err)
	}
	if err := ch.QueueBind(s.exchange+".outbox", mailRoutingKey, s.exchange, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("bind mail queue: %w", err)
	}

	s.conn = conn
	s.ch = ch
	s.confirm = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	s.logger.Info().Str("exchange", s.exchange).Msg("mail exchange ready")
	return nil
}

// Send publishes msg. A dropped connection is redialled once per call.
// Publishes are serialised so each confirm pairs with its message.
func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		if err := s.connectLocked(); err != nil {
			return err
		}
	}

	err = s.ch.Publish(s.exchange, mailRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}

	timer := time.NewTimer(s.confirmTimeout)
	defer timer.Stop()
	select {
	case c, ok := <-s.confirm:
		if !ok {
			return errors.New("channel closed before publish confirm")
		}
		if !c.Ack {
			return errors.New("mail job not confirmed by broker")
		}
		return nil
	case <-timer.C:
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping reports whether the broker connection is open.
func (s *AMQPSender) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func encodeMessage(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode mail job: %w", err)
	}
	return body, nil
}
