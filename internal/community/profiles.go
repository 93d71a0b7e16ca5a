package community

import (
	"context"
	"fmt"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
)

var (
	scopeProfile      = cache.Scope{Domain: "profiles", Resource: "profile"}
	scopeAchievements = cache.Scope{Domain: "profiles", Resource: "achievements"}
	scopeActivity     = cache.Scope{Domain: "profiles", Resource: "activity"}
)

// Profiles serves user profiles, achievements and activity feeds.
type Profiles struct {
	conns  *connection.Manager
	cache  *cache.Manager
	calls  calls
	logger *logging.Logger
}

// NewProfiles creates the profiles service.
func NewProfiles(conns *connection.Manager, cacheMgr *cache.Manager, cfg Config, logger *logging.Logger) *Profiles {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Profiles{
		conns:  conns,
		cache:  cacheMgr,
		calls:  newCalls("profiles", cfg, logger),
		logger: logger,
	}
}

// Breaker exposes the service's circuit breaker for observability.
func (s *Profiles) Breaker() *resilience.Breaker {
	return s.calls.breaker
}

// GetProfile returns one profile by user ID.
func (s *Profiles) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	key := scopeProfile.Key(userID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "get_profile", func(ctx context.Context) (interface{}, error) {
			var profiles []Profile
			err := s.conns.GetClient().From("profiles").
				Eq("id", userID).
				Limit(1).
				Select(ctx, &profiles)
			if err != nil {
				return nil, err
			}
			if len(profiles) == 0 {
				return nil, fmt.Errorf("profiles: user %s not found", userID)
			}
			return profiles[0], nil
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	profile, ok := v.(Profile)
	if !ok {
		return nil, fmt.Errorf("profiles: unexpected cached type %T", v)
	}
	return &profile, nil
}

// ListAchievements returns a user's earned badges.
func (s *Profiles) ListAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	key := scopeAchievements.Key(userID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_achievements", func(ctx context.Context) (interface{}, error) {
			var earned []Achievement
			err := s.conns.GetClient().From("achievements").
				Eq("user_id", userID).
				Order("earned_at", true).
				Select(ctx, &earned)
			return earned, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	earned, ok := v.([]Achievement)
	if !ok {
		return nil, fmt.Errorf("profiles: unexpected cached type %T", v)
	}
	return earned, nil
}

// ListActivity returns a user's recent activity feed.
func (s *Profiles) ListActivity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	key := scopeActivity.Key(userID)

	v, err := s.cache.Get(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.calls.run(ctx, "list_activity", func(ctx context.Context) (interface{}, error) {
			var feed []Activity
			err := s.conns.GetClient().From("activities").
				Eq("user_id", userID).
				Order("created_at", true).
				Limit(limit).
				Select(ctx, &feed)
			return feed, err
		})
	}, nil)
	if err != nil {
		return nil, err
	}

	feed, ok := v.([]Activity)
	if !ok {
		return nil, fmt.Errorf("profiles: unexpected cached type %T", v)
	}
	return feed, nil
}

// UpdateProfile patches profile fields and invalidates the user's profile
// cache.
func (s *Profiles) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (*Profile, error) {
	v, err := s.calls.run(ctx, "update_profile", func(ctx context.Context) (interface{}, error) {
		var updated []Profile
		err := s.conns.GetClient().From("profiles").
			Eq("id", userID).
			Update(ctx, fields, &updated)
		if err != nil {
			return nil, err
		}
		if len(updated) == 0 {
			return nil, fmt.Errorf("profiles: user %s not found", userID)
		}
		return updated[0], nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(scopeProfile.Key(userID))
	profile := v.(Profile)
	return &profile, nil
}
