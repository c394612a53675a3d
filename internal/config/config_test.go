package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 8, cfg.Retry.MaxRetries)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, time.Minute, cfg.Breaker.Cooldown)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "sk-test-12345")

	assert.Equal(t, "sk-test-12345", resolveEnvRef(nil, "ENV:TEST_GATEWAY_KEY"))
	assert.Equal(t, "literal-key", resolveEnvRef(nil, "literal-key"))
}
