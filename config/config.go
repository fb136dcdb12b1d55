package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lingopulse/realtime-gateway/models"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string
	RedisDB  int

	// Optional Postgres used only to bootstrap role policies
	DatabaseURL string

	// Gateway authentication. This secret is dedicated to the realtime
	// path and independent from the platform's resource-server keys.
	GatewayJWTSecret string
	TokenHeader      string

	// Presence configuration
	PresenceTTL time.Duration

	// Rate limiter configuration
	RateLimitFailOpen bool
	Policies          map[string]models.RolePolicy

	// Upper bound on any single round-trip to the shared store
	StoreTimeout time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisDB:     getEnvAsInt("REDIS_DB", 0),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		GatewayJWTSecret: getEnv("GATEWAY_JWT_SECRET", "realtime-dev-secret"),
		TokenHeader:      getEnv("GATEWAY_TOKEN_HEADER", "X-Auth-Token"),

		PresenceTTL: getEnvAsSeconds("PRESENCE_TTL_SECONDS", 300),

		RateLimitFailOpen: getEnvAsBool("RATE_LIMIT_FAIL_OPEN", true),
		Policies:          models.DefaultPolicies(),

		StoreTimeout: getEnvAsMillis("STORE_TIMEOUT_MS", 3000),
	}

	// Built-in tiers can be tuned per deployment without a database.
	for role := range cfg.Policies {
		upper := strings.ToUpper(role)
		p := cfg.Policies[role]
		p.RequestsPerWindow = getEnvAsInt("RATE_LIMIT_"+upper+"_REQUESTS", p.RequestsPerWindow)
		p.WindowDuration = getEnvAsSeconds("RATE_LIMIT_"+upper+"_WINDOW_SECONDS", int(p.WindowDuration/time.Second))
		cfg.Policies[role] = p
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
