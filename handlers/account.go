package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/middleware"
	"lingopulse/realtime-gateway/services"
)

// AccountHandler serves the authenticated caller's own view of the
// realtime layer: who the gateway thinks they are and where their rate
// window stands.
type AccountHandler struct {
	limiter      *services.RateLimiter
	storeTimeout time.Duration
}

func NewAccountHandler(limiter *services.RateLimiter, storeTimeout time.Duration) *AccountHandler {
	return &AccountHandler{limiter: limiter, storeTimeout: storeTimeout}
}

// Me echoes the identity extracted from the caller's token.
func (ah *AccountHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, identity)
}

// Limits reports the caller's tier and remaining cooldown.
func (ah *AccountHandler) Limits(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ah.storeTimeout)
	defer cancel()

	policy := ah.limiter.PolicyFor(identity.Role)
	cooldown, err := ah.limiter.RemainingCooldown(ctx, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":                policy.Role,
		"requests_per_window": policy.RequestsPerWindow,
		"window_seconds":      int(policy.WindowDuration / time.Second),
		"cooldown_seconds":    int(cooldown / time.Second),
	})
}
