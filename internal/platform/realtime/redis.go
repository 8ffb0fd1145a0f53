package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPublisher sends events over Redis PUBLISH so every server instance's
// Relay can hand them to its local sockets.
type RedisPublisher struct {
	client *redis.Client
	origin string
}

func NewRedisPublisher(client *redis.Client, origin string) *RedisPublisher {
	return &RedisPublisher{client: client, origin: origin}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	msg, err := NewMessage(p.origin, channel, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Default delays between relay subscribe attempts. The delay doubles after
// each failure up to the maximum.
const (
	DefaultRelayMinBackoff = 500 * time.Millisecond
	DefaultRelayMaxBackoff = 30 * time.Second
)

// Relay subscribes to all user channels and forwards each message to a Sink.
// Messages this instance published itself are skipped because the local hub
// already received them directly.
type Relay struct {
	client *redis.Client
	origin string
	sink   Sink
	logger zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
	// onRetry, when set, is called after each failed subscribe attempt.
	onRetry func(attempt int, err error)
}

func NewRelay(client *redis.Client, origin string, sink Sink, logger zerolog.Logger) *Relay {
	return &Relay{
		client:     client,
		origin:     origin,
		sink:       sink,
		logger:     logger,
		minBackoff: DefaultRelayMinBackoff,
		maxBackoff: DefaultRelayMaxBackoff,
	}
}

// Run blocks until ctx is cancelled. A failed subscribe, at boot or after the
// subscription drops, is retried with exponential backoff.
func (r *Relay) Run(ctx context.Context) {
	attempt := 0
	for {
		subscribed, err := r.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			attempt = 0
		}
		attempt++
		if err == nil {
			err = errors.New("subscription closed")
		}
		delay := r.backoff(attempt)
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("realtime relay not subscribed")
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// backoff returns the delay before retry number attempt (1-indexed).
func (r *Relay) backoff(attempt int) time.Duration {
	delay := r.minBackoff
	for i := 1; i < attempt && delay < r.maxBackoff; i++ {
		delay *= 2
	}
	if delay > r.maxBackoff {
		delay = r.maxBackoff
	}
	return delay
}

// listen runs one subscription. subscribed reports whether PSUBSCRIBE was
// acknowledged before it ended.
func (r *Relay) listen(ctx context.Context) (subscribed bool, err error) {
	sub := r.client.PSubscribe(ctx, userChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("psubscribe: %w", err)
	}
	r.logger.Info().Str("pattern", userChannelPrefix+"*").Msg("realtime relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case m, ok := <-ch:
			if !ok {
				return true, nil
			}
			r.handle(m.Channel, []byte(m.Payload))
		}
	}
}

func (r *Relay) handle(channel string, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed realtime message")
		return
	}
	if msg.Origin != "" && msg.Origin == r.origin {
		return
	}
	if msg.Channel == "" {
		msg.Channel = channel
	}
	r.sink.Deliver(msg)
}
