package config

import (
	"fmt"
	"os"
	"time"
)

// JWTConfig configures bearer token verification.
//
// Tokens are RS256-signed and checked against a JWKS endpoint, or HS256-signed with a
// shared secret (the Supabase project JWT secret). Setting JWT_SECRET enables HS256.
type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	Secret   string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	HTTPTimeout time.Duration
}

// UsesSecret reports whether tokens are verified with the shared HS256 secret.
func (c JWTConfig) UsesSecret() bool { return c.Secret != "" }

func LoadJWTConfigFromEnv() (JWTConfig, error) {
	issuer := os.Getenv("JWT_ISSUER")
	audience := os.Getenv("JWT_AUDIENCE")
	jwksURL := os.Getenv("JWT_JWKS_URL")
	secret := os.Getenv("JWT_SECRET")
	if issuer == "" || audience == "" || (jwksURL == "" && secret == "") {
		return JWTConfig{}, fmt.Errorf("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, and one of JWT_JWKS_URL or JWT_SECRET")
	}

	cfg := JWTConfig{
		Issuer:    issuer,
		Audience:  audience,
		JWKSURL:   jwksURL,
		Secret:    secret,
		ClockSkew: 30 * time.Second,
		// Refresh periodically to pick up key rotation even if an old key is still cached.
		JWKSRefreshInterval: 5 * time.Minute,
		// Bound refresh frequency when a token presents an unknown kid.
		JWKSMinRefreshInterval: 10 * time.Second,
		HTTPTimeout:            5 * time.Second,
	}

	durations := []struct {
		key     string
		example string
		dst     *time.Duration
	}{
		{"JWT_CLOCK_SKEW", "30s", &cfg.ClockSkew},
		{"JWT_JWKS_REFRESH_INTERVAL", "5m", &cfg.JWKSRefreshInterval},
		{"JWT_JWKS_MIN_REFRESH_INTERVAL", "10s", &cfg.JWKSMinRefreshInterval},
		{"JWT_HTTP_TIMEOUT", "5s", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return JWTConfig{}, fmt.Errorf("%s must be a duration (e.g. %s): %w", d.key, d.example, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
