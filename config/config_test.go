package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PresenceTTL)
	assert.True(t, cfg.RateLimitFailOpen)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)

	def := cfg.Policies["default"]
	assert.Equal(t, 20, def.RequestsPerWindow)
	assert.Equal(t, time.Minute, def.WindowDuration)
	assert.Equal(t, 100, cfg.Policies["admin"].RequestsPerWindow)
	assert.Equal(t, 50, cfg.Policies["staff"].RequestsPerWindow)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("PRESENCE_TTL_SECONDS", "120")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "false")
	t.Setenv("RATE_LIMIT_ADMIN_REQUESTS", "250")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW_SECONDS", "30")

	cfg := LoadConfig()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.PresenceTTL)
	assert.False(t, cfg.RateLimitFailOpen)
	assert.Equal(t, 250, cfg.Policies["admin"].RequestsPerWindow)
	assert.Equal(t, 30*time.Second, cfg.Policies["default"].WindowDuration)
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("PRESENCE_TTL_SECONDS", "five minutes")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 5*time.Minute, cfg.PresenceTTL)
	assert.True(t, cfg.RateLimitFailOpen)
}
