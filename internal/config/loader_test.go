package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "standalone"
log_level = "debug"

[server]
port = 9000
rate_limit = 120
rate_limit_window = "30s"

[postgres]
host = "db.internal"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "standalone" {
		t.Errorf("expected mode standalone, got %q", cfg.Mode)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimitWindow.Duration != 30*time.Second {
		t.Errorf("expected 30s window, got %s", cfg.Server.RateLimitWindow.Duration)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected overridden host, got %q", cfg.Postgres.Host)
	}

	// Unset fields keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected default postgres port, got %d", cfg.Postgres.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[postgres]
password = "from-file"
`)

	t.Setenv("LENDPOOL_POSTGRES_PASSWORD", "from-env")
	t.Setenv("LENDPOOL_SERVER_PORT", "8443")
	t.Setenv("LENDPOOL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Postgres.Password != "from-env" {
		t.Errorf("expected env to override file, got %q", cfg.Postgres.Password)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("expected port 8443 from env, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("expected two trimmed origins, got %v", cfg.Server.CORSOrigins)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nonsense"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate_StandaloneSkipsBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "standalone"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Redis.Addr = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("standalone mode should not require postgres/redis: %v", err)
	}
}

func TestValidate_TelegramPairRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "token-only"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when telegram chat id is missing")
	}

	cfg.Notify.TelegramChatID = "chat"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with both telegram fields, got %v", err)
	}
}
