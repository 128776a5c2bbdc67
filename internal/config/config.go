package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config contains all runtime settings for the intake service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	// DatabaseURL selects the Postgres record store. Empty means in-memory.
	DatabaseURL          string
	StoreConnectAttempts int

	CatalogDBPath string
	SchemaFile    string

	SessionBackend string
	RedisURL       string
	SessionIdleTTL time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "intake"),
		AllowAnyOrigin:       false,
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		LogFormat:            envOrDefault("LOG_FORMAT", "json"),
		DatabaseURL:          trimmedEnv("DATABASE_URL"),
		StoreConnectAttempts: 5,
		CatalogDBPath:        envOrDefault("CATALOG_DB_PATH", "data/catalog.db"),
		SchemaFile:           trimmedEnv("QUESTIONNAIRE_SCHEMA_FILE"),
		SessionBackend:       strings.ToLower(envOrDefault("SESSION_BACKEND", SessionBackendMemory)),
		RedisURL:             envOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		ShutdownTimeout:      15 * time.Second,
		SessionIdleTTL:       30 * time.Minute,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = databaseURLFromParts()
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTTL, err = durationFromEnv("SESSION_IDLE_TTL", cfg.SessionIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreConnectAttempts, err = intFromEnv("STORE_CONNECT_ATTEMPTS", cfg.StoreConnectAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTTL < 0 {
		return Config{}, fmt.Errorf("SESSION_IDLE_TTL must be >= 0")
	}
	if cfg.StoreConnectAttempts <= 0 {
		return Config{}, fmt.Errorf("STORE_CONNECT_ATTEMPTS must be positive")
	}
	switch cfg.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return Config{}, fmt.Errorf("SESSION_BACKEND must be %q or %q", SessionBackendMemory, SessionBackendRedis)
	}

	return cfg, nil
}

// databaseURLFromParts builds a Postgres URL from DB_HOST and friends. It
// returns "" when DB_HOST is unset.
func databaseURLFromParts() string {
	host := trimmedEnv("DB_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, envOrDefault("DB_PORT", "5432")),
		Path:   "/" + envOrDefault("DB_NAME", "intake"),
	}
	if user := trimmedEnv("DB_USER"); user != "" {
		if pass := os.Getenv("DB_PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
