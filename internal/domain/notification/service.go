package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/metrics"
	"github.com/clinic/dashboard/internal/platform/realtime"
)

const DefaultPublishTimeout = 2 * time.Second

// Dispatcher stores a notification and then pushes it to the user's live
// channel. The row is the source of truth; the push is best effort.
type Dispatcher struct {
	repo           Repository
	publisher      realtime.Publisher
	publishTimeout time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

func NewDispatcher(repo Repository, publisher realtime.Publisher, publishTimeout time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if publisher == nil {
		publisher = realtime.Discard{}
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &Dispatcher{
		repo:           repo,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		metrics:        m,
		logger:         logger,
	}
}

// Notify writes one notification row for userID and publishes it once. A
// failed write is returned as a dependency error and nothing is published.
// Publish failures are logged and counted but never returned.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, title, message string, kind Type) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, apperr.Validation("notification recipient is required")
	}
	if !kind.Valid() {
		return nil, apperr.Validation("unknown notification type %q", kind)
	}
	n := &Notification{
		UserID:  userID,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		Type:    kind,
	}
	if n.Title == "" {
		return nil, apperr.Validation("notification title is required")
	}
	if err := d.repo.Create(ctx, n); err != nil {
		return nil, apperr.Dependency(err, "could not store notification")
	}
	d.metrics.NotificationCreated(string(kind))

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, realtime.UserChannel(userID), EventCreated, n); err != nil {
		d.metrics.PublishFailed(EventCreated)
		d.logger.Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Str("user_id", userID.String()).
			Msg("live notification publish failed")
	}
	return n, nil
}

// Service serves a user's own notifications.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list notifications")
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Dependency(err, "could not count notifications")
	}
	return n, nil
}

// MarkRead marks one of userID's notifications read. Another user's
// notification is reported as not found.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("notification %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not update notification")
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Dependency(err, "could not update notifications")
	}
	return n, nil
}
