package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "queryloop")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "queryloop_dev")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.DB.Host != "localhost" || cfg.DB.Port != 5432 {
		t.Errorf("unexpected DB defaults: host=%s port=%d", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.MaxSize != 10 {
		t.Errorf("DB pool size default = %d, want 10", cfg.DB.MaxSize)
	}
	if cfg.Auth.AccessTokenDuration != 15*time.Minute {
		t.Errorf("access token duration default = %v", cfg.Auth.AccessTokenDuration)
	}
	if cfg.Auth.RefreshTokenDuration != 168*time.Hour {
		t.Errorf("refresh token duration default = %v", cfg.Auth.RefreshTokenDuration)
	}
	if cfg.Storage.Root != "./data/uploads" {
		t.Errorf("storage root default = %q", cfg.Storage.Root)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("server port default = %q", cfg.Server.Port)
	}
}

func TestLoadConfigCollectsAllMissing(t *testing.T) {
	// Only one of the four required variables is present; the error should
	// name the other three.
	t.Setenv("DB_USER", "queryloop")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected an error for missing required variables")
	}
	for _, name := range []string{"DB_PASSWORD", "DB_NAME", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s, got: %v", name, err)
		}
	}
}

func TestLoadConfigPoolSizeClamped(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_POOL_SIZE", "1000")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "DB_POOL_SIZE") {
		t.Fatalf("expected a clamping error mentioning DB_POOL_SIZE, got: %v", err)
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_ACCESS_TOKEN_DURATION", "soon")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_TOKEN_DURATION") {
		t.Fatalf("expected a duration parse error, got: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_ROOT", "/var/lib/queryloop/files")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.DB.Host != "db.internal" || cfg.DB.Port != 6543 {
		t.Errorf("DB overrides not applied: %+v", cfg.DB)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("server port override not applied: %q", cfg.Server.Port)
	}
	if cfg.Storage.Root != "/var/lib/queryloop/files" {
		t.Errorf("storage root override not applied: %q", cfg.Storage.Root)
	}
}
