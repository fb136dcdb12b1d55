package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/store"
)

// HealthCheck reports service liveness and whether the shared store is
// reachable. A dead store degrades the response but keeps 200: the
// gateway still serves anonymous sockets without it.
func HealthCheck(kv store.Store, storeTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		redisStatus := "up"
		if err := kv.Ping(ctx); err != nil {
			redisStatus = "down"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "realtime-gateway",
			"redis":     redisStatus,
			"timestamp": time.Now(),
		})
	}
}
