package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("SMS_JWT_SECRET", "access-secret")
	t.Setenv("SMS_REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("SMS_TEMP_TOKEN_SECRET", "temp-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("SMS_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr != ":3000" {
		t.Fatalf("unexpected addr: %s", cfg.App.Addr)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 2*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.Auth.RefreshTTL)
	}
	if cfg.Auth.TempTTL != 5*time.Minute {
		t.Fatalf("unexpected temp ttl: %v", cfg.Auth.TempTTL)
	}
	if cfg.Production() {
		t.Fatal("default env must not be production")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("SMS_ENV", "production")
	t.Setenv("SMS_ADDR", ":8080")
	t.Setenv("SMS_JWT_EXPIRES_IN", "30m")
	t.Setenv("SMS_ALLOWED_ORIGINS", "https://sms.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Production() {
		t.Fatal("expected production mode")
	}
	if cfg.App.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.App.Addr)
	}
	if cfg.Auth.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.Auth.AccessTTL)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	setRequiredSecrets(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sms.yaml")
	data := []byte("app:\n  name: sms-staging\n  addr: \":4000\"\nauth:\n  refresh_ttl: 1h\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SMS_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "sms-staging" {
		t.Fatalf("unexpected app name: %s", cfg.App.Name)
	}
	if cfg.App.Addr != ":4000" {
		t.Fatalf("unexpected addr: %s", cfg.App.Addr)
	}
	if cfg.Auth.RefreshTTL != time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.Auth.RefreshTTL)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("SMS_JWT_SECRET", "")
	t.Setenv("SMS_REFRESH_TOKEN_SECRET", "")
	t.Setenv("SMS_TEMP_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing secrets")
	}

	setRequiredSecrets(t)
	t.Setenv("SMS_TEMP_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing temporary secret")
	}

	t.Setenv("SMS_JWT_SECRET", "same")
	t.Setenv("SMS_REFRESH_TOKEN_SECRET", "same")
	t.Setenv("SMS_TEMP_TOKEN_SECRET", "temp-secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for identical secrets")
	}

	// A temporary secret matching the access secret would let the
	// 5-minute login token pass access verification.
	setRequiredSecrets(t)
	t.Setenv("SMS_TEMP_TOKEN_SECRET", "access-secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for temporary secret equal to access secret")
	}
}
