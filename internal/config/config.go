package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendHTTP     = "http"
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int
	LogLevel    string
	ServiceName string

	// Ledger and reference data
	LedgerBackend       string
	LedgerAPIURL        string
	RatesAPIURL         string
	CompanySettingsFile string

	// HTTP client
	HTTPTimeout time.Duration

	// One statement build, fetch included
	BuildTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Postgres
	DatabaseURL     string
	DatabaseMaxConn int

	// Scheduled month-end run
	ScheduleEnabled  bool
	ScheduleSpec     string
	ScheduleTimezone string
	ScheduleCurrency string
	ExportDir        string
}

// LoadDotEnv reads a .env file into the environment.
// It does NOT override existing env vars (env takes precedence).
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "finstatements"),

		LedgerBackend:       getEnv("LEDGER_BACKEND", BackendHTTP),
		LedgerAPIURL:        getEnv("LEDGER_API_URL", "http://localhost:8081"),
		RatesAPIURL:         getEnv("RATES_API_URL", ""),
		CompanySettingsFile: getEnv("COMPANY_SETTINGS_FILE", "companies.yaml"),

		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		BuildTimeout: getEnvDuration("BUILD_TIMEOUT", 30*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DatabaseMaxConn: getEnvInt("DATABASE_MAX_CONNS", 10),

		ScheduleEnabled:  getEnvBool("SCHEDULE_ENABLED", false),
		ScheduleSpec:     getEnv("SCHEDULE_SPEC", "0 2 1 * *"),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", "UTC"),
		ScheduleCurrency: getEnv("SCHEDULE_CURRENCY", ""),
		ExportDir:        getEnv("EXPORT_DIR", "exports"),
	}
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
