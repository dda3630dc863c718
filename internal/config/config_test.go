package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BORGDESK_CONFIG", "DATABASE_URL", "HTTP_LISTEN_ADDR", "LOG_LEVEL",
		"BORG_PATH", "MOCK_BORG", "MOUNT_BASE_DIR", "MOUNT_CLEANUP_ENABLED",
		"MOUNT_CLEANUP_INTERVAL_HOURS", "MOUNT_MAX_AGE_HOURS",
		"AUTO_UNMOUNT_ORPHANED", "AUTH_TOKEN_SECRET", "AUTH_TOKEN_ISSUER",
		"CORS_ORIGINS", "SUBPROCESS_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "borg", cfg.BorgPath)
	assert.False(t, cfg.MockBorg)
	assert.Equal(t, 5*time.Minute, cfg.SubprocessTimeout)
	assert.Equal(t, "/var/lib/borgdesk/mounts", cfg.MountBaseDir)
	assert.True(t, cfg.MountCleanupEnabled)
	assert.Equal(t, 12, cfg.MountCleanupIntervalHours)
	assert.Equal(t, 24, cfg.MountMaxAgeHours)
	assert.True(t, cfg.AutoUnmountOrphaned)
	assert.Equal(t, "borgdesk", cfg.AuthTokenIssuer)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/borgdesk_test")
	t.Setenv("MOUNT_MAX_AGE_HOURS", "48")
	t.Setenv("MOUNT_CLEANUP_ENABLED", "false")
	t.Setenv("MOCK_BORG", "true")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173,https://borgdesk.example.com")
	t.Setenv("SUBPROCESS_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/borgdesk_test", cfg.DatabaseURL)
	assert.Equal(t, 48, cfg.MountMaxAgeHours)
	assert.False(t, cfg.MountCleanupEnabled)
	assert.True(t, cfg.MockBorg)
	assert.Equal(t, []string{"http://localhost:5173", "https://borgdesk.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.SubprocessTimeout)
}

func TestLoad_YAMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "borgdesk.yaml")
	yaml := "database_url: postgres://file/db\nlog_level: debug\nmount_max_age_hours: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("BORGDESK_CONFIG", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 6, cfg.MountMaxAgeHours)
}

func TestLoad_BadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBPROCESS_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUBPROCESS_TIMEOUT")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		MountCleanupIntervalHours: 12,
		MountMaxAgeHours:          24,
	}

	err := cfg.Validate("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/borgdesk"
	err = cfg.Validate("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_TOKEN_SECRET")

	require.NoError(t, cfg.Validate("cli"))

	cfg.AuthTokenSecret = "secret"
	require.NoError(t, cfg.Validate("api"))

	cfg.MountMaxAgeHours = 0
	err = cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MOUNT_MAX_AGE_HOURS")
}

func TestMountMaxAge(t *testing.T) {
	cfg := &Config{MountMaxAgeHours: 36}
	assert.Equal(t, 36*time.Hour, cfg.MountMaxAge())
}
