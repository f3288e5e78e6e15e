// Package config loads and validates the environment configuration for the
// hosting app.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable through SESSION_STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the typed view of the process environment.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Identity provider boundary
	ProviderURL            string
	ProviderAnonKey        string
	ProviderServiceRoleKey string // optional, privileged handle only
	ProviderTimeout        time.Duration

	// Session store backend
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	CORSOrigins  []string
	CookieSecure bool
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnvInt("PORT", 8080),
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),

		ProviderURL:            os.Getenv("PROVIDER_URL"),
		ProviderAnonKey:        os.Getenv("PROVIDER_ANON_KEY"),
		ProviderServiceRoleKey: os.Getenv("PROVIDER_SERVICE_ROLE_KEY"),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", 5*time.Second),

		StoreBackend:  GetEnvOrDefault("SESSION_STORE_BACKEND", StoreMemory),
		RedisAddr:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),

		CORSOrigins:  splitList(GetEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),
		CookieSecure: os.Getenv("APP_ENV") == "production",
	}

	if err := ValidateEnv([]string{"PROVIDER_URL", "PROVIDER_ANON_KEY"}); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required when SESSION_STORE_BACKEND=%s", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetEnv retrieves an environment variable or panics
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
