package community

import (
	"context"
	"fmt"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

var scopeNotificationList = cache.Scope{Domain: "notifications", Resource: "list"}

// Notifications serves a user's alerts.
type Notifications struct {
	conns  *connection.Manager
	cache  *cache.Manager
	calls  calls
	logger *logging.Logger
}

// NewNotifications creates the notifications service.
func NewNotifications(conns *connection.Manager, cacheMgr *cache.Manager, cfg Config, logger *logging.Logger) *Notifications {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Notifications{
		conns:  conns,
		cache:  cacheMgr,
		calls:  newCalls("notifications", cfg, logger),
		logger: logger,
	}
}

// Breaker exposes the service's circuit breaker for observability.
func (s *Notifications) Breaker() *resilience.Breaker {
	return s.calls.breaker
}

// ListUnseen returns a user's unseen notifications, newest-first.
func (s *Notifications) ListUnseen(ctx context.Context, userID string) ([]Notification, error) {
	key := scopeNotificationList.Key(userID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_unseen", func(ctx context.Context) (interface{}, error) {
			var alerts []Notification
			err := s.conns.GetClient().From("notifications").
				Eq("user_id", userID).
				Eq("seen", "false").
				Order("created_at", true).
				Select(ctx, &alerts)
			return alerts, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	alerts, ok := v.([]Notification)
	if !ok {
		return nil, fmt.Errorf("notifications: unexpected cached type %T", v)
	}
	return alerts, nil
}

// MarkSeen flags notifications as seen and invalidates the user's cache.
func (s *Notifications) MarkSeen(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.calls.run(ctx, "mark_seen", func(ctx context.Context) (interface{}, error) {
		return nil, s.conns.GetClient().From("notifications").
			In("id", ids...).
			Update(ctx, map[string]interface{}{"seen": true}, nil)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(scopeNotificationList.Key(userID))
	return nil
}
