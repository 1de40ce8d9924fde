package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Postgres captures the record-store connection settings.
type Postgres struct {
	URL string
}

// RedisConfig captures interaction-state store settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures submission-event publishing settings. Empty brokers disable
// publishing (events degrade to log lines).
type Kafka struct {
	Brokers []string
	Topic   string
}

// Issuer captures the remote arrival-card authority endpoint.
type Issuer struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Forms captures save-coalescing behavior.
type Forms struct {
	DebounceWindow time.Duration
}

// Config is the full application configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	Issuer   Issuer
	Forms    Forms
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("TRIPSECRETARY_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envOr("JWT_ISSUER", "tripsecretary"),
			JWTAudience:   envOr("JWT_AUDIENCE", "tripsecretary-app"),
		},
		Postgres: Postgres{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envOrInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envOrInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envOrDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envOrDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envOrDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_SUBMISSION_TOPIC", "tripsecretary.card-submissions"),
		},
		Issuer: Issuer{
			BaseURL:      os.Getenv("CARD_ISSUER_URL"),
			APIKey:       os.Getenv("CARD_ISSUER_API_KEY"),
			Timeout:      envOrDuration("CARD_ISSUER_TIMEOUT", 30*time.Second),
			MaxRetries:   envOrInt("CARD_ISSUER_MAX_RETRIES", 2),
			RetryBackoff: envOrDuration("CARD_ISSUER_RETRY_BACKOFF", 2*time.Second),
		},
		Forms: Forms{
			DebounceWindow: envOrDuration("FORM_DEBOUNCE_WINDOW", 800*time.Millisecond),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
