package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every knob the security core and its HTTP surface
// recognize. Values come from trailmark.yaml and TRAILMARK_* environment
// variables, env winning.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	PGDSN      string `mapstructure:"pg_dsn"`

	SessionInactivityTimeoutSeconds int `mapstructure:"session_inactivity_timeout_seconds"`
	SessionRotationIntervalSeconds  int `mapstructure:"session_rotation_interval_seconds"`

	MaxLoginAttempts          int `mapstructure:"max_login_attempts"`
	LoginAttemptWindowSeconds int `mapstructure:"login_attempt_window_seconds"`
	LoginLockoutSeconds       int `mapstructure:"login_lockout_seconds"`

	AuditEnabled       bool   `mapstructure:"audit_enabled"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
	AuditFileDir       string `mapstructure:"audit_file_dir"`

	// Empty list leaves logins unrestricted.
	OriginAllowList []string `mapstructure:"origin_allow_list"`

	ServiceTokenSecret string `mapstructure:"service_token_secret"`
}

// SessionInactivityTimeout returns the timeout as a duration.
func (c Config) SessionInactivityTimeout() time.Duration {
	return time.Duration(c.SessionInactivityTimeoutSeconds) * time.Second
}

// SessionRotationInterval returns the rotation interval as a duration.
func (c Config) SessionRotationInterval() time.Duration {
	return time.Duration(c.SessionRotationIntervalSeconds) * time.Second
}

// LoginAttemptWindow returns the sliding attempt window as a duration.
func (c Config) LoginAttemptWindow() time.Duration {
	return time.Duration(c.LoginAttemptWindowSeconds) * time.Second
}

// LoginLockout returns the lockout duration.
func (c Config) LoginLockout() time.Duration {
	return time.Duration(c.LoginLockoutSeconds) * time.Second
}

// Load reads configuration, optionally from an explicit file path.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("session_inactivity_timeout_seconds", 1800)
	v.SetDefault("session_rotation_interval_seconds", 1800)
	v.SetDefault("max_login_attempts", 5)
	v.SetDefault("login_attempt_window_seconds", 300)
	v.SetDefault("login_lockout_seconds", 900)
	v.SetDefault("audit_enabled", true)
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_file_dir", "audit")
	v.SetDefault("origin_allow_list", []string{})
	v.SetDefault("service_token_secret", "")

	v.SetConfigName("trailmark")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/trailmark")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TRAILMARK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config file is fine; an explicit path is not.
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
