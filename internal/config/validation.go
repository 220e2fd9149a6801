package config

import (
	"fmt"
	"net"
	"net/url"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// minJWTSecretLen is the minimum accepted JWT secret length in bytes.
// HS256 keys shorter than the hash output weaken the MAC.
const minJWTSecretLen = 32

// Validate checks the configuration and returns the first problem found.
// Called from Load(); serve-mode-only requirements (JWT secret) are checked
// separately via ValidateServe so offline commands (migrate, ingest) work
// without secrets.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidListenAddr, c.ListenAddr)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	u, err := url.Parse(c.InferenceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidInferenceURL, c.InferenceURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidInferenceURL, u.Scheme)
	}

	if c.RAGTopK < 1 || c.RAGTopK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidRAGTopK, c.RAGTopK)
	}
	if c.RAGThreshold < 0 || c.RAGThreshold > 1 {
		return fmt.Errorf("%w: %v (must be 0-1)", ErrInvalidRAGThreshold, c.RAGThreshold)
	}

	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return fmt.Errorf("%w: window=%v max=%d", ErrInvalidRateLimit, c.RateLimitWindow, c.RateLimitMax)
	}

	return nil
}

// ValidateServe checks requirements that only apply to the HTTP server.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set JWT_SECRET", ErrMissingJWTSecret)
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidJWTSecret, minJWTSecretLen, len(c.JWTSecret))
	}
	return nil
}
