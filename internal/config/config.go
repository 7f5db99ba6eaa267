package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Local cache
	LocalStore string // sqlite | memory
	SQLitePath string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Synchronizer
	InitTimeout         time.Duration
	OutboxFlushSchedule string

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL     string
	SupabaseAnonKey string
	UseSupabase     bool

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration
	BcryptCost   int

	// Seeded administrator (first run only)
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// LoadDotEnv reads a .env file into the environment. Variables already
// set in the environment win.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LocalStore: getEnv("LOCAL_STORE", "sqlite"),
		SQLitePath: getEnv("SQLITE_PATH", "finanzo.db"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		InitTimeout:         getEnvDuration("INIT_TIMEOUT", 10*time.Second),
		OutboxFlushSchedule: getEnv("OUTBOX_FLUSH_SCHEDULE", "@every 1m"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		UseSupabase:     getEnvBool("USE_SUPABASE", true),

		JWTSecret:    getEnv("JWT_SECRET", "finanzo-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 12*time.Hour),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@finanzo.local"),
		AdminName:     getEnv("ADMIN_NAME", "Administrador JCC"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
	}
}

// RemoteEnabled reports whether a Supabase project is configured and
// turned on.
func (c *Config) RemoteEnabled() bool {
	return c.UseSupabase && c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// Validate returns every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.LocalStore {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH cannot be empty when LOCAL_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LOCAL_STORE %q: must be sqlite or memory", c.LocalStore))
	}

	if c.SupabaseURL != "" {
		if u, err := url.Parse(c.SupabaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid SUPABASE_URL %q", c.SupabaseURL))
		}
	}

	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}
	if c.InitTimeout <= 0 {
		errs = append(errs, errors.New("INIT_TIMEOUT must be positive"))
	}
	if _, err := cron.ParseStandard(c.OutboxFlushSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid OUTBOX_FLUSH_SCHEDULE %q: %w", c.OutboxFlushSchedule, err))
	}
	if c.AdminEmail == "" || c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
