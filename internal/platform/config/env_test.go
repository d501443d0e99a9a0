package config

import "testing"

type testConfig struct {
	Addr    string `env:"TEST_CONFIG_ADDR" envDefault:"localhost:9090"`
	Retries int    `env:"TEST_CONFIG_RETRIES" envDefault:"3"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9090" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Retries != 3 {
		t.Fatalf("expected default retries, got %d", cfg.Retries)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONFIG_ADDR", "0.0.0.0:7000")
	t.Setenv("TEST_CONFIG_RETRIES", "5")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "0.0.0.0:7000" {
		t.Fatalf("expected overridden addr, got %q", cfg.Addr)
	}
	if cfg.Retries != 5 {
		t.Fatalf("expected overridden retries, got %d", cfg.Retries)
	}
}
