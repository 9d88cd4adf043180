package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `yaml:"name" env:"NEWSDESK_TEST_NAME"`
	Port     int           `yaml:"port" env:"NEWSDESK_TEST_PORT"`
	Debug    bool          `yaml:"debug" env:"NEWSDESK_TEST_DEBUG"`
	Interval time.Duration `yaml:"interval" env:"NEWSDESK_TEST_INTERVAL"`
	Banned   []string      `yaml:"banned" env:"NEWSDESK_TEST_BANNED"`
	Database struct {
		DSN string `yaml:"dsn" env:"NEWSDESK_TEST_DSN"`
	} `yaml:"database"`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
name: newsdesk
port: 8080
interval: 1h
banned: [Peru21]
database:
  dsn: data/noticias.db
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "newsdesk" {
		t.Fatalf("expected 'newsdesk', got '%s'", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Port)
	}
	if cfg.Interval != time.Hour {
		t.Fatalf("expected 1h, got %s", cfg.Interval)
	}
	if len(cfg.Banned) != 1 || cfg.Banned[0] != "Peru21" {
		t.Fatalf("unexpected banned list %v", cfg.Banned)
	}
	if cfg.Database.DSN != "data/noticias.db" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, "name: default\nport: 3000\n")

	t.Setenv("NEWSDESK_TEST_NAME", "from-env")
	t.Setenv("NEWSDESK_TEST_PORT", "9090")
	t.Setenv("NEWSDESK_TEST_DEBUG", "true")
	t.Setenv("NEWSDESK_TEST_INTERVAL", "30m")
	t.Setenv("NEWSDESK_TEST_BANNED", "Peru21, Otro Medio ,")
	t.Setenv("NEWSDESK_TEST_DSN", "postgres://x")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" || cfg.Port != 9090 || !cfg.Debug {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Interval != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", cfg.Interval)
	}
	if len(cfg.Banned) != 2 || cfg.Banned[1] != "Otro Medio" {
		t.Fatalf("unexpected banned list %v", cfg.Banned)
	}
	if cfg.Database.DSN != "postgres://x" {
		t.Fatalf("nested override not applied: %q", cfg.Database.DSN)
	}
}

func TestEnvOverride_Malformed(t *testing.T) {
	t.Setenv("NEWSDESK_TEST_PORT", "eighty")
	var cfg testConfig
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("expected error for malformed int")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := testConfig{Name: "keep"}
	if err := LoadOrDefault("/nonexistent/config.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Name != "keep" {
		t.Fatalf("expected defaults to survive, got '%s'", cfg.Name)
	}
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NEWSDESK_TEST_DOTENV=hola\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NEWSDESK_TEST_DOTENV") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("NEWSDESK_TEST_DOTENV"); got != "hola" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
