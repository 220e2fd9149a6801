// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables (runtime override)
//  2. Config file (~/.wellnessgrid/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - HTTP: listen address, CORS origins, proxy trust
//   - Storage: PostgreSQL connection (see storage.go)
//   - Inference: external embedding/generation backend
//   - RAG: retrieval knobs (top K, similarity threshold, context budget)
//   - Auth: JWT secret and token lifetime
//   - Tracing: OTLP endpoint (see observability package)
//
// Secrets (PostgresPassword, JWTSecret) are masked in MarshalJSON/String.
// Validation is fail-fast with sentinel errors checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidListenAddr indicates a malformed HTTP listen address.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidInferenceURL indicates the inference backend URL is malformed.
	ErrInvalidInferenceURL = errors.New("invalid inference backend URL")

	// ErrMissingJWTSecret indicates the JWT secret is not set in serve mode.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidRAGTopK indicates top K is out of range.
	ErrInvalidRAGTopK = errors.New("invalid RAG top K")

	// ErrInvalidRAGThreshold indicates the similarity threshold is out of range.
	ErrInvalidRAGThreshold = errors.New("invalid RAG similarity threshold")

	// ErrInvalidRateLimit indicates a non-positive rate limit setting.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new secret fields, update MarshalJSON.
type Config struct {
	// HTTP server
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	Dev         bool     `mapstructure:"dev" json:"dev"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Inference backend
	InferenceURL     string        `mapstructure:"inference_url" json:"inference_url"`
	InferenceTimeout time.Duration `mapstructure:"inference_timeout" json:"inference_timeout"`

	// RAG retrieval knobs
	RAGTopK          int     `mapstructure:"rag_top_k" json:"rag_top_k"`
	RAGThreshold     float64 `mapstructure:"rag_threshold" json:"rag_threshold"`
	RAGContextBudget int     `mapstructure:"rag_context_budget" json:"rag_context_budget"` // characters
	RAGMaxTokens     int     `mapstructure:"rag_max_tokens" json:"rag_max_tokens"`
	RAGTemperature   float64 `mapstructure:"rag_temperature" json:"rag_temperature"`

	// Rate limiting (fixed window per client IP)
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" json:"rate_limit_window"`
	RateLimitMax    int           `mapstructure:"rate_limit_max" json:"rate_limit_max"`

	// Auth
	JWTSecret string        `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	JWTTTL    time.Duration `mapstructure:"jwt_ttl" json:"jwt_ttl"`

	// Tracing
	TracingEnabled  bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
	TracingEndpoint string `mapstructure:"tracing_endpoint" json:"tracing_endpoint"`
	TracingService  string `mapstructure:"tracing_service" json:"tracing_service"`
	TracingEnv      string `mapstructure:"tracing_env" json:"tracing_env"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".wellnessgrid")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("listen_addr", "127.0.0.1:8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("dev", false)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "wellnessgrid")
	viper.SetDefault("postgres_password", "wellnessgrid_dev_password")
	viper.SetDefault("postgres_db_name", "wellnessgrid")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("inference_url", "http://localhost:5001")
	viper.SetDefault("inference_timeout", 60*time.Second)

	viper.SetDefault("rag_top_k", 5)
	viper.SetDefault("rag_threshold", 0.5)
	viper.SetDefault("rag_context_budget", 4000)
	viper.SetDefault("rag_max_tokens", 200)
	viper.SetDefault("rag_temperature", 0.7)

	viper.SetDefault("rate_limit_window", time.Minute)
	viper.SetDefault("rate_limit_max", 60)

	viper.SetDefault("jwt_ttl", 24*time.Hour)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "localhost:4318")
	viper.SetDefault("tracing_service", "wellnessgrid")
	viper.SetDefault("tracing_env", "dev")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "WG_LISTEN_ADDR")
	mustBind("cors_origins", "WG_CORS_ORIGINS")
	mustBind("trust_proxy", "WG_TRUST_PROXY")
	mustBind("dev", "WG_DEV")
	mustBind("inference_url", "INFERENCE_BACKEND_URL")
	mustBind("jwt_secret", "JWT_SECRET")
	mustBind("tracing_enabled", "WG_TRACING_ENABLED")
	mustBind("tracing_endpoint", "OTLP_ENDPOINT")
	// NOTE: DATABASE_URL is read directly in parseDatabaseURL, not via viper.
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters or
// fewer are fully masked; longer ones keep the first and last two characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JWTSecret = maskSecret(a.JWTSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
