package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrJWTSecretMissing means no signing secret is configured. The server then
// accepts requests without actor tokens.
var ErrJWTSecretMissing = errors.New("JWT_SECRET is required but not set")

const defaultTokenHours = 24

// JWTConfig holds the actor token signing secret and lifetime.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig reads JWT_SECRET and JWT_EXPIRATION_HOURS. Tokens live
// 24 hours unless JWT_EXPIRATION_HOURS says otherwise.
func NewJWTConfig() (*JWTConfig, error) {
	cfg := &JWTConfig{Secret: os.Getenv("JWT_SECRET"), ExpirationHours: defaultTokenHours}
	if cfg.Secret == "" {
		return nil, ErrJWTSecretMissing
	}

	if raw := os.Getenv("JWT_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS %q: %w", raw, err)
		}
		if hours < 1 {
			return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1, got %d", hours)
		}
		cfg.ExpirationHours = hours
	}
	return cfg, nil
}

// TTL is how long an issued token stays valid.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
