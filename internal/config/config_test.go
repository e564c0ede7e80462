package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("DBMaxConns = %d, want 20", cfg.DBMaxConns)
	}
	if !cfg.IsDev() {
		t.Error("IsDev() = false, want true for default env")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without DATABASE_URL, want error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic_test")
	os.Setenv("PORT", "9090")
	os.Setenv("ENV", "production")
	os.Setenv("AUTH_SECRET", "s3cret")
	os.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("AUTH_SECRET")
		os.Unsetenv("CORS_ORIGINS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestValidateProductionRequiresSecret(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil for production without AUTH_SECRET, want error")
	}

	cfg.AuthSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil once AUTH_SECRET set", err)
	}

	dev := &Config{Env: "development"}
	if err := dev.Validate(); err != nil {
		t.Fatalf("Validate() = %v for development, want nil", err)
	}
}

func TestRequestTimeoutDuration(t *testing.T) {
	cfg := &Config{RequestTimeout: 15}
	if got := cfg.RequestTimeoutDuration(); got != 15*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 15s", got)
	}

	zero := &Config{}
	if got := zero.RequestTimeoutDuration(); got != 30*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 30s fallback", got)
	}
}
