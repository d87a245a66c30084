package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aneupi/finance-engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "aneupi.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "0 3 * * *", cfg.SyncSchedule)
	assert.Equal(t, 10.0, cfg.AdminRateLimit)
	assert.Equal(t, 20, cfg.AdminRateBurst)
	assert.Equal(t, "aneupi.audit", cfg.AMQPExchange)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.SyncEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://aneupi.org, https://admin.aneupi.org")
	t.Setenv("SYNC_SCHEDULE", "off")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, []string{"https://aneupi.org", "https://admin.aneupi.org"}, cfg.AllowedOrigins())
	assert.False(t, cfg.SyncEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvFile(t *testing.T) {
	// GIVEN: A .env file with a DB path and the process env with the port
	// WHEN: Loading
	// THEN: Both are applied; the process environment wins on conflicts

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_PATH=/var/lib/aneupi/data.db\nPORT=7000\nJWT_SECRET="+secret+"\n"), 0o600))
	t.Setenv("PORT", "7001")
	t.Cleanup(func() {
		os.Unsetenv("DB_PATH")
		os.Unsetenv("JWT_SECRET")
	})

	cfg, err := config.Load(envFile)

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/aneupi/data.db", cfg.DBPath)
	assert.Equal(t, 7001, cfg.Port)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &config.Config{
		Port:            0,
		DBPath:          "x.db",
		LogLevel:        "loud",
		LogFormat:       "xml",
		JWTSecret:       "short",
		AdminRateLimit:  0,
		AdminRateBurst:  0,
		SyncSchedule:    "every night",
		AMQPURL:         "http://rabbit",
		AMQPExchange:    "aneupi.audit",
		ShutdownTimeout: time.Second,
	}

	err := cfg.Validate()

	require.Error(t, err)
	for _, want := range []string{"port", "log level", "log format", "JWT_SECRET", "rate limit", "rate burst", "sync schedule", "AMQP URL scheme"} {
		assert.Contains(t, err.Error(), want)
	}
}
