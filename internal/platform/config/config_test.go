package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 5*time.Minute, cfg.RoleCacheTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoad_EnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("PORT=9999\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("PORT", "7000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROLE_CACHE_TTL", "30s")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port, "environment wins over .env")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
	os.Unsetenv("LOG_LEVEL")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("AUTH_MODE", "none")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "AUTH_MODE")
}

func TestLoadJWTConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_ISSUER", "https://project.supabase.co/auth/v1")
	t.Setenv("JWT_AUDIENCE", "authenticated")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_JWKS_URL", "")
	_, err := LoadJWTConfigFromEnv()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_CLOCK_SKEW", "1m")
	cfg, err := LoadJWTConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.UsesSecret())
	assert.Equal(t, time.Minute, cfg.ClockSkew)

	t.Setenv("JWT_CLOCK_SKEW", "soon")
	_, err = LoadJWTConfigFromEnv()
	assert.ErrorContains(t, err, "JWT_CLOCK_SKEW")
}
