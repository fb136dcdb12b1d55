package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingopulse/realtime-gateway/auth"
	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/services"
	"lingopulse/realtime-gateway/store"
	"lingopulse/realtime-gateway/utils"
)

const testSecret = "middleware-test-secret"

func quietLogger() *utils.Logger {
	return &utils.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func testRouter(t *testing.T) (*gin.Engine, *auth.Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	kv := store.NewRedisStore(client)

	policies := map[string]models.RolePolicy{
		models.DefaultRole: {Role: models.DefaultRole, RequestsPerWindow: 2, WindowDuration: time.Minute},
	}
	authenticator := auth.NewAuthenticator(testSecret)
	limiter := services.NewRateLimiter(kv, policies, true, quietLogger())

	router := gin.New()
	protected := router.Group("/api")
	protected.Use(Auth(authenticator))
	protected.Use(RateLimit(limiter, authenticator, time.Second, quietLogger()))
	protected.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// Rate limiting without mandatory auth, for public-but-counted routes.
	router.GET("/open", RateLimit(limiter, authenticator, time.Second, quietLogger()), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return router, authenticator
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, "/api/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, "/api/ping", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitReturns429WithWaitHint(t *testing.T) {
	router, authenticator := testRouter(t)

	token, err := authenticator.Generate(models.Identity{UserID: "u1", Role: "learner"}, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := doRequest(router, "/api/ping", token)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doRequest(router, "/api/ping", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests. Try again in")
	assert.Contains(t, w.Body.String(), "seconds")
}

func TestRateLimitSkipsAnonymousCallers(t *testing.T) {
	router, _ := testRouter(t)

	// No token and no Auth middleware: every request passes untouched.
	for i := 0; i < 10; i++ {
		w := doRequest(router, "/open", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitParsesHeaderWithoutAuthMiddleware(t *testing.T) {
	router, authenticator := testRouter(t)

	token, err := authenticator.Generate(models.Identity{UserID: "u2", Role: "learner"}, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := doRequest(router, "/open", token)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(router, "/open", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
