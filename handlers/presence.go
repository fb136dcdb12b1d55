package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/middleware"
	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/services"
	"lingopulse/realtime-gateway/utils"
)

// PresenceHandler exposes the tracker over HTTP for clients that do
// not hold a socket open (the mobile app polls presence of a user's
// study partners, and heartbeats while backgrounded).
type PresenceHandler struct {
	presence     *services.PresenceTracker
	storeTimeout time.Duration
	logger       *utils.Logger
}

func NewPresenceHandler(presence *services.PresenceTracker, storeTimeout time.Duration, logger *utils.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence:     presence,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Heartbeat refreshes the caller's presence TTL. The user comes from
// the authenticated identity, never the request body.
func (ph *PresenceHandler) Heartbeat(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ph.storeTimeout)
	defer cancel()

	if err := ph.presence.MarkOnline(ctx, identity.UserID); err != nil {
		ph.logger.Error("failed to update presence", "user_id", identity.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "presence updated"})
}

// GetStatus reports whether a user is online.
func (ph *PresenceHandler) GetStatus(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id parameter is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ph.storeTimeout)
	defer cancel()

	c.JSON(http.StatusOK, models.StatusResponse{
		UserID:   userID,
		IsOnline: ph.presence.IsOnline(ctx, userID),
	})
}

// GetOnlineUsers lists the users currently marked online.
func (ph *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ph.storeTimeout)
	defer cancel()

	users, err := ph.presence.OnlineUsers(ctx)
	if err != nil {
		ph.logger.Error("failed to list online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.OnlineUsersResponse{Count: len(users), Users: users})
}
