// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if cfg.Database.Path != "/data/mensura.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if cfg.Ingest.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.Ingest.MaxBodyBytes, 1<<20)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("TRUSTED_TOKENS", "tok-a, tok-b")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if len(cfg.Ingest.TrustedTokens) != 2 || cfg.Ingest.TrustedTokens[0] != "tok-a" || cfg.Ingest.TrustedTokens[1] != "tok-b" {
		t.Errorf("TrustedTokens = %v", cfg.Ingest.TrustedTokens)
	}
	if cfg.Server.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v", cfg.Server.RateLimitWindow)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LogLevel = %s", cfg.Logging.Level)
	}
}

func TestLoadIgnoresUnmappedEnvironment(t *testing.T) {
	t.Setenv("PORT", "1234")
	t.Setenv("PATH_STYLE", "whatever")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, unmapped env leaked into config", cfg.Server.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	content := "server:\n  port: 8443\ndatabase:\n  path: /var/lib/mensura.db\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("Port = %d, want 8443 from file", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/mensura.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	// Unset keys keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want default", cfg.Logging.Level)
	}
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	content := "server:\n  port: 8443\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9443")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("Port = %d, want the environment to win", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with out-of-range port")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8000},
			Database: DatabaseConfig{Path: "/data/mensura.db"},
			Ingest:   IngestConfig{MaxBodyBytes: 1024},
			Logging:  LoggingConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"console format", func(c *Config) { c.Logging.Format = "console" }, false},
		{"empty format", func(c *Config) { c.Logging.Format = "" }, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, true},
		{"zero body limit", func(c *Config) { c.Ingest.MaxBodyBytes = 0 }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}
