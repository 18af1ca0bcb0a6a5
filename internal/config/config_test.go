package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("USER_CACHE_TTL", "")
	t.Setenv("ROTATE_REFRESH_TOKENS", "")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.UserCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.False(t, cfg.RotateRefreshTokens)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("USER_CACHE_TTL", "30m")
	t.Setenv("ROTATE_REFRESH_TOKENS", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.UserCacheTTL)
	assert.True(t, cfg.RotateRefreshTokens)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_OP_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "one")
	t.Setenv("DB_AUTO_MIGRATE", "maybe")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.DBOpTimeout)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.AutoMigrate)
}
