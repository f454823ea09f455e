package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	secretsPath := filepath.Join(dir, "secrets.toml")

	configTOML := `
status_addr = "127.0.0.1:9999"
chain_network = "regtest"
intensity_percent = 40
default_account = "bcrt1qexample"
page_size_options = [10, 25]
data_dir = "` + dir + `"
`
	if err := os.WriteFile(configPath, []byte(configTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	secretsTOML := `
engine_rpc_user = "eng"
engine_rpc_pass = "hunter2"
admin_jwt_secret = "secret-for-tests"
`
	if err := os.WriteFile(secretsPath, []byte(secretsTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadConfig(configPath, secretsPath)

	if cfg.StatusAddr != "127.0.0.1:9999" {
		t.Errorf("StatusAddr = %q", cfg.StatusAddr)
	}
	if cfg.ChainNetwork != "regtest" || cfg.IntensityPercent != 40 {
		t.Errorf("overrides not applied: %q %d", cfg.ChainNetwork, cfg.IntensityPercent)
	}
	if cfg.EngineRPCURL != defaultEngineURL {
		t.Errorf("unset key overwritten: EngineRPCURL = %q", cfg.EngineRPCURL)
	}
	if cfg.EngineRPCUser != "eng" || cfg.EngineRPCPass != "hunter2" {
		t.Error("secrets not applied")
	}
	if cfg.AdminJWTSecret != "secret-for-tests" {
		t.Error("admin secret not applied")
	}
	if len(cfg.PageSizeOptions) != 2 || cfg.PageSizeOptions[1] != 25 {
		t.Errorf("PageSizeOptions = %v", cfg.PageSizeOptions)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(filepath.Join(dir, "nope.toml"), filepath.Join(dir, "nope-secrets.toml"))
	if cfg.StatusAddr != defaultStatusAddr {
		t.Errorf("StatusAddr = %q, want default", cfg.StatusAddr)
	}
	if cfg.IntensityPercent != defaultIntensityPercent {
		t.Errorf("IntensityPercent = %d, want default", cfg.IntensityPercent)
	}
}

func TestLoadConfigTightensSecretsPermissions(t *testing.T) {
	dir := t.TempDir()
	secretsPath := filepath.Join(dir, "secrets.toml")
	if err := os.WriteFile(secretsPath, []byte(`engine_rpc_user = "eng"`), 0o644); err != nil {
		t.Fatal(err)
	}

	loadConfig(filepath.Join(dir, "nope.toml"), secretsPath)

	info, err := os.Stat(secretsPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets permissions = %o, want 600", perm)
	}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	good := defaultConfig()
	if err := validateConfig(good); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"intensity too low", func(c *Config) { c.IntensityPercent = 0 }},
		{"intensity too high", func(c *Config) { c.IntensityPercent = 101 }},
		{"no workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"zero poll interval", func(c *Config) { c.StatsPollIntervalSeconds = 0 }},
		{"page size not offered", func(c *Config) { c.LedgerPageSize = 7 }},
		{"bad engine url", func(c *Config) { c.EngineRPCURL = "ftp://x" }},
		{"bad network", func(c *Config) { c.ChainNetwork = "hypernet" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero token ttl", func(c *Config) { c.AdminTokenTTLHours = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Errorf("validateConfig accepted %s", tc.name)
			}
		})
	}
}
