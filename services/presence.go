package services

import (
	"context"
	"errors"
	"time"

	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/store"
	"lingopulse/realtime-gateway/utils"
)

const (
	presenceKeyPrefix = "user:online:"
	onlineSetKey      = "online_users"
)

// PresenceTracker maintains per-user online markers in the shared
// store. A marker with a TTL is the only online signal: heartbeats
// refresh it, a clean disconnect deletes it, and a crashed client goes
// offline when the TTL lapses (worst case one full TTL late).
//
// Presence is best-effort UX, not a security control, so store
// failures degrade to "offline" instead of erroring.
type PresenceTracker struct {
	store  store.Store
	ttl    time.Duration
	logger *utils.Logger
}

func NewPresenceTracker(kv store.Store, ttl time.Duration, logger *utils.Logger) *PresenceTracker {
	return &PresenceTracker{
		store:  kv,
		ttl:    ttl,
		logger: logger,
	}
}

// MarkOnline sets the user's online marker, refreshing the TTL if it
// already exists. The value is a constant, so repeated heartbeats are
// plain last-write-wins.
func (pt *PresenceTracker) MarkOnline(ctx context.Context, userID string) error {
	key := presenceKeyPrefix + userID
	if err := pt.store.Set(ctx, key, string(models.StatusOnline), pt.ttl); err != nil {
		return err
	}
	if err := pt.store.SAdd(ctx, onlineSetKey, userID); err != nil {
		return err
	}
	// Keep the listing set alive longer than any single marker.
	if err := pt.store.Expire(ctx, onlineSetKey, pt.ttl*2); err != nil {
		pt.logger.Warn("failed to refresh online set ttl", "error", err)
	}
	pt.logger.Debug("user marked online", "user_id", userID)
	return nil
}

// MarkOffline removes the marker immediately. A clean disconnect does
// not wait for the TTL.
func (pt *PresenceTracker) MarkOffline(ctx context.Context, userID string) error {
	if err := pt.store.Del(ctx, presenceKeyPrefix+userID); err != nil {
		return err
	}
	if err := pt.store.SRem(ctx, onlineSetKey, userID); err != nil {
		pt.logger.Warn("failed to prune online set", "user_id", userID, "error", err)
	}
	pt.logger.Debug("user marked offline", "user_id", userID)
	return nil
}

// IsOnline reports whether the user's marker exists. An unreachable
// store reads as offline.
func (pt *PresenceTracker) IsOnline(ctx context.Context, userID string) bool {
	_, err := pt.store.Get(ctx, presenceKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			pt.logger.Warn("presence store unreachable, treating as offline", "user_id", userID, "error", err)
		}
		return false
	}
	return true
}

// OnlineUsers lists users with a live marker, pruning set members whose
// marker has expired since they were added.
func (pt *PresenceTracker) OnlineUsers(ctx context.Context) ([]string, error) {
	members, err := pt.store.SMembers(ctx, onlineSetKey)
	if err != nil {
		return nil, err
	}

	online := make([]string, 0, len(members))
	var expired []string
	for _, userID := range members {
		if pt.IsOnline(ctx, userID) {
			online = append(online, userID)
		} else {
			expired = append(expired, userID)
		}
	}

	if len(expired) > 0 {
		if err := pt.store.SRem(ctx, onlineSetKey, expired...); err != nil {
			pt.logger.Warn("failed to prune expired members", "error", err)
		}
	}

	return online, nil
}
