package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IDColumn != "ID" || cfg.EmailPrefix != "email_" || cfg.CanonicalProtocol != "https://" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.TrimTokens || cfg.KeepEmptyTokens {
		t.Fatalf("token defaults: trim=%v keepEmpty=%v", cfg.TrimTokens, cfg.KeepEmptyTokens)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EMAIL_DELIMITER", ";")
	t.Setenv("TRIM_TOKENS", "off")
	t.Setenv("WATCH_INTERVAL_SEC", "nope")
	t.Setenv("EXTENSION_STRATEGY", "PublicSuffix")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EmailDelimiter != ";" {
		t.Fatalf("delimiter=%q", cfg.EmailDelimiter)
	}
	if cfg.TrimTokens {
		t.Fatal("TRIM_TOKENS=off not honored")
	}
	if cfg.WatchIntervalSec != 60 {
		t.Fatalf("interval fallback=%d", cfg.WatchIntervalSec)
	}
	if cfg.ExtensionStrategy != "publicsuffix" {
		t.Fatalf("strategy=%q", cfg.ExtensionStrategy)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{name: "multi char delimiter", mut: func(c *Config) { c.EmailDelimiter = ",," }, field: "EmailDelimiter"},
		{name: "unknown strategy", mut: func(c *Config) { c.ExtensionStrategy = "psl" }, field: "ExtensionStrategy"},
		{name: "empty id column", mut: func(c *Config) { c.IDColumn = "" }, field: "IDColumn"},
		{name: "bad log format", mut: func(c *Config) { c.LogFormat = "xml" }, field: "LogFormat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			tc.mut(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("error %q does not name %s", err, tc.field)
			}
		})
	}
}
