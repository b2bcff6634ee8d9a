package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Supabase
	SupabaseURL           string
	SupabaseAnonKey       string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Database (migrations only)
	DatabaseURL string

	// Workflow
	CleanupOrphanedUploads bool
	FetchTimeout           time.Duration
	MaxUploadBytes         int64
	WorkspaceIdleTimeout   time.Duration

	// Server
	Port             string
	Environment      string
	LogLevel         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
}

// ConfigurationError reports a required setting that is missing at startup.
// The server renders it instead of serving the API; it is never retried.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// IsConfigurationError reports whether err carries a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Load reads the environment (and an optional .env file). When a required
// value is missing the partially populated config is still returned next to
// the *ConfigurationError so the caller can keep serving the error screen.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:       getEnv("SUPABASE_ANON_KEY", os.Getenv("SUPABASE_PUBLISHABLE_KEY")),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "ImagePoster"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CleanupOrphanedUploads: getEnvBool("CLEANUP_ORPHANED_UPLOADS", false),
		FetchTimeout:           getEnvSeconds("FETCH_TIMEOUT_SECONDS", 30),
		MaxUploadBytes:         getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		WorkspaceIdleTimeout:   getEnvSeconds("WORKSPACE_IDLE_TIMEOUT_SECONDS", 3600),

		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		HTTPReadTimeout:  getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 120),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if missing(c.SupabaseURL) {
		return &ConfigurationError{
			Key:     "SUPABASE_URL",
			Message: "Configuration Error: Supabase URL is not provided. Please ensure the SUPABASE_URL environment variable is set.",
		}
	}
	if missing(c.SupabaseAnonKey) {
		return &ConfigurationError{
			Key:     "SUPABASE_ANON_KEY",
			Message: "Configuration Error: Supabase Anon Key is not provided. Please ensure the SUPABASE_ANON_KEY environment variable is set.",
		}
	}
	if missing(c.GeminiAPIKey) {
		return &ConfigurationError{
			Key:     "GEMINI_API_KEY",
			Message: "Configuration Error: Gemini API key is not provided. Please ensure the GEMINI_API_KEY environment variable is set.",
		}
	}
	if c.SupabaseStorageBucket == "" {
		return &ConfigurationError{
			Key:     "SUPABASE_STORAGE_BUCKET",
			Message: "Configuration Error: storage bucket name must not be empty.",
		}
	}
	return nil
}

// DataKey is the key used for table and bucket access. The service role key
// bypasses row level security, so every query must filter by owner itself.
func (c *Config) DataKey() string {
	if !missing(c.SupabaseServiceKey) {
		return c.SupabaseServiceKey
	}
	return c.SupabaseAnonKey
}

// ForwardsUserTokens reports whether data calls run as the signed-in user.
// Without a service role key the anon key alone cannot pass the owner
// policies, so the caller's access token is sent instead.
func (c *Config) ForwardsUserTokens() bool {
	return missing(c.SupabaseServiceKey)
}

// missing treats unset values and unreplaced build placeholders such as
// "__SUPABASE_URL__" as absent.
func missing(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.HasPrefix(v, "__")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// String renders the config without credentials, for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s port=%s model=%s bucket=%s jwt_verify=%t service_role=%t migrations=%t cleanup_orphans=%t",
		c.Environment, c.Port, c.GeminiModel, c.SupabaseStorageBucket,
		c.SupabaseJWTSecret != "", !missing(c.SupabaseServiceKey), c.DatabaseURL != "", c.CleanupOrphanedUploads)
}
