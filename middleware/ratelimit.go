package middleware

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/auth"
	"lingopulse/realtime-gateway/services"
	"lingopulse/realtime-gateway/utils"
)

// RateLimit counts each authenticated request against the caller's
// window before the handler runs. Violations short-circuit with 429
// and a plain-text wait hint.
//
// The identity comes from the Auth middleware when present; otherwise
// the Authorization header is parsed here. Requests with no resolvable
// identity pass through untouched: rate limiting is keyed by user, and
// rejecting anonymous traffic is the Auth middleware's job.
func RateLimit(limiter *services.RateLimiter, authenticator *auth.Authenticator, storeTimeout time.Duration, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			header := c.GetHeader("Authorization")
			if header == "" {
				c.Next()
				return
			}
			var err error
			identity, err = authenticator.Authenticate(header)
			if err != nil {
				// Unauthenticated callers are not counted.
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		decision, err := limiter.Allow(ctx, identity.UserID, identity.Role)
		if err != nil {
			logger.Warn("rate limit check degraded", "user_id", identity.UserID, "error", err)
		}
		if !decision.Allowed {
			seconds := int64(math.Ceil(decision.RetryAfter.Seconds()))
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in %d seconds.", seconds)
			c.Abort()
			return
		}

		c.Next()
	}
}
