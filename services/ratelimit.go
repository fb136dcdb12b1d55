package services

import (
	"context"
	"strings"
	"time"

	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/store"
	"lingopulse/realtime-gateway/utils"
)

const rateLimitKeyPrefix = "rate_limit:"

// RateLimiter enforces per-user fixed-window request budgets keyed by
// role. The window is a fixed window, not a sliding one: bursts of up
// to twice the budget are possible across a window boundary. Counters
// live in the shared store so every gateway instance sees the same
// window.
type RateLimiter struct {
	store    store.Store
	policies map[string]models.RolePolicy
	failOpen bool
	logger   *utils.Logger
}

func NewRateLimiter(kv store.Store, policies map[string]models.RolePolicy, failOpen bool, logger *utils.Logger) *RateLimiter {
	return &RateLimiter{
		store:    kv,
		policies: policies,
		failOpen: failOpen,
		logger:   logger,
	}
}

// PolicyFor resolves the policy for a role. Roles are matched
// case-insensitively; unknown or empty roles get the default tier.
func (rl *RateLimiter) PolicyFor(role string) models.RolePolicy {
	if p, ok := rl.policies[strings.ToLower(role)]; ok {
		return p
	}
	return rl.policies[models.DefaultRole]
}

// Allow counts one request against userID's current window and reports
// whether it fits the role's budget. The INCR return value arbitrates
// window creation: exactly one of any number of concurrent first
// requests observes 1 and sets the expiry, so the window can neither
// be reset twice nor left unexpired.
//
// If the store is unreachable the configured fail policy decides the
// outcome; the error is still returned so callers can log it.
func (rl *RateLimiter) Allow(ctx context.Context, userID, role string) (models.Decision, error) {
	policy := rl.PolicyFor(role)
	key := rateLimitKeyPrefix + userID

	count, err := rl.store.Incr(ctx, key)
	if err != nil {
		rl.logger.Warn("rate limit store unreachable", "user_id", userID, "fail_open", rl.failOpen, "error", err)
		return models.Decision{Allowed: rl.failOpen, Policy: policy}, err
	}

	if count == 1 {
		if err := rl.store.Expire(ctx, key, policy.WindowDuration); err != nil {
			rl.logger.Warn("failed to start rate limit window", "user_id", userID, "error", err)
		}
	}

	decision := models.Decision{
		Allowed: count <= int64(policy.RequestsPerWindow),
		Count:   count,
		Policy:  policy,
	}
	if !decision.Allowed {
		if ttl, err := rl.store.TTL(ctx, key); err == nil {
			decision.RetryAfter = ttl
		} else {
			decision.RetryAfter = policy.WindowDuration
		}
	}
	return decision, nil
}

// RemainingCooldown returns the time left on userID's current window,
// or zero when no counter is active.
func (rl *RateLimiter) RemainingCooldown(ctx context.Context, userID string) (time.Duration, error) {
	return rl.store.TTL(ctx, rateLimitKeyPrefix+userID)
}
