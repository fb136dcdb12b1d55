package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/auth"
	"lingopulse/realtime-gateway/models"
)

const identityKey = "identity"

// Auth requires a valid bearer token on the request and stores the
// resulting identity in the gin context. Unlike the WebSocket
// handshake, the REST surface rejects bad tokens outright.
func Auth(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		identity, err := authenticator.Authenticate(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by Auth, if any.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}
