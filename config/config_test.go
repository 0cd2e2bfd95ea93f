package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.False(t, cfg.AI.Configured())
	assert.Contains(t, cfg.DB.DSN(), "dbname=kindly_db")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("GENAI_API_KEY", "key")
	t.Setenv("GENAI_URL", "http://llm.local/v1")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Contains(t, cfg.DB.DSN(), "host=db.internal")
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.AI.Configured())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
