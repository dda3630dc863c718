package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL    string `yaml:"database_url"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`

	// BorgPath is the backup engine binary. MockBorg substitutes a canned
	// engine for development environments without borg installed.
	BorgPath          string        `yaml:"borg_path"`
	MockBorg          bool          `yaml:"mock_borg"`
	SubprocessTimeout time.Duration `yaml:"subprocess_timeout"`

	MountBaseDir              string `yaml:"mount_base_dir"`
	MountCleanupEnabled       bool   `yaml:"mount_cleanup_enabled"`
	MountCleanupIntervalHours int    `yaml:"mount_cleanup_interval_hours"`
	MountMaxAgeHours          int    `yaml:"mount_max_age_hours"`
	AutoUnmountOrphaned       bool   `yaml:"auto_unmount_orphaned"`

	AuthTokenSecret string `yaml:"auth_token_secret"`
	AuthTokenIssuer string `yaml:"auth_token_issuer"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// Load builds the config from environment variables, with an optional YAML
// file (BORGDESK_CONFIG) applied first so env vars win.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPListenAddr:            ":8090",
		LogLevel:                  "info",
		ServiceName:               "borgdesk",
		BorgPath:                  "borg",
		SubprocessTimeout:         5 * time.Minute,
		MountBaseDir:              "/var/lib/borgdesk/mounts",
		MountCleanupEnabled:       true,
		MountCleanupIntervalHours: 12,
		MountMaxAgeHours:          24,
		AutoUnmountOrphaned:       true,
		AuthTokenIssuer:           "borgdesk",
	}

	if path := os.Getenv("BORGDESK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", cfg.HTTPListenAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.BorgPath = getEnv("BORG_PATH", cfg.BorgPath)
	cfg.MockBorg = getEnvBool("MOCK_BORG", cfg.MockBorg)
	cfg.MountBaseDir = getEnv("MOUNT_BASE_DIR", cfg.MountBaseDir)
	cfg.MountCleanupEnabled = getEnvBool("MOUNT_CLEANUP_ENABLED", cfg.MountCleanupEnabled)
	cfg.MountCleanupIntervalHours = getEnvInt("MOUNT_CLEANUP_INTERVAL_HOURS", cfg.MountCleanupIntervalHours)
	cfg.MountMaxAgeHours = getEnvInt("MOUNT_MAX_AGE_HOURS", cfg.MountMaxAgeHours)
	cfg.AutoUnmountOrphaned = getEnvBool("AUTO_UNMOUNT_ORPHANED", cfg.AutoUnmountOrphaned)
	cfg.AuthTokenSecret = getEnv("AUTH_TOKEN_SECRET", cfg.AuthTokenSecret)
	cfg.AuthTokenIssuer = getEnv("AUTH_TOKEN_ISSUER", cfg.AuthTokenIssuer)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("SUBPROCESS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse SUBPROCESS_TIMEOUT: %w", err)
		}
		cfg.SubprocessTimeout = d
	}

	return cfg, nil
}

// Validate checks the fields the named component cannot run without.
func (c *Config) Validate(component string) error {
	switch component {
	case "api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.AuthTokenSecret == "" {
			return fmt.Errorf("AUTH_TOKEN_SECRET is required")
		}
	case "cli":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	}
	if c.MountCleanupIntervalHours < 1 {
		return fmt.Errorf("MOUNT_CLEANUP_INTERVAL_HOURS must be at least 1")
	}
	if c.MountMaxAgeHours < 1 {
		return fmt.Errorf("MOUNT_MAX_AGE_HOURS must be at least 1")
	}
	return nil
}

// MountMaxAge returns the orphan threshold as a duration.
func (c *Config) MountMaxAge() time.Duration {
	return time.Duration(c.MountMaxAgeHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
