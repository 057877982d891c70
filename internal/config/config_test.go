package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.SessionInactivityTimeout() != 30*time.Minute {
		t.Fatalf("inactivity timeout = %v", cfg.SessionInactivityTimeout())
	}
	if cfg.SessionRotationInterval() != 30*time.Minute {
		t.Fatalf("rotation interval = %v", cfg.SessionRotationInterval())
	}
	if cfg.MaxLoginAttempts != 5 {
		t.Fatalf("max attempts = %d", cfg.MaxLoginAttempts)
	}
	if cfg.LoginAttemptWindow() != 5*time.Minute {
		t.Fatalf("attempt window = %v", cfg.LoginAttemptWindow())
	}
	if cfg.LoginLockout() != 15*time.Minute {
		t.Fatalf("lockout = %v", cfg.LoginLockout())
	}
	if !cfg.AuditEnabled || cfg.AuditRetentionDays != 90 {
		t.Fatalf("audit defaults: enabled=%v retention=%d", cfg.AuditEnabled, cfg.AuditRetentionDays)
	}
	if len(cfg.OriginAllowList) != 0 {
		t.Fatalf("allow list = %v, want empty", cfg.OriginAllowList)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRAILMARK_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("TRAILMARK_LOGIN_LOCKOUT_SECONDS", "600")
	t.Setenv("TRAILMARK_AUDIT_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxLoginAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.MaxLoginAttempts)
	}
	if cfg.LoginLockout() != 10*time.Minute {
		t.Fatalf("lockout = %v, want 10m", cfg.LoginLockout())
	}
	if cfg.AuditEnabled {
		t.Fatal("audit_enabled should be overridden to false")
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trailmark.yaml")
	body := []byte("listen_addr: \":9090\"\nmax_login_attempts: 7\norigin_allow_list:\n  - 10.0.0.1\n  - 10.0.0.2\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.MaxLoginAttempts != 7 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.OriginAllowList) != 2 || cfg.OriginAllowList[0] != "10.0.0.1" {
		t.Fatalf("allow list = %v", cfg.OriginAllowList)
	}
	// Untouched keys keep their defaults.
	if cfg.LoginLockout() != 15*time.Minute {
		t.Fatalf("lockout = %v, want default", cfg.LoginLockout())
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("explicitly named missing file must fail")
	}
}
