package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.Identities = []IdentityConfig{
		{ID: "alice", Name: "Alice", Scopes: []string{"macro:editor"}, Active: true},
	}
	cfg.Auth.APIKeys = []APIKeyConfig{
		{Key: "sha256:abc", IdentityID: "alice", Name: "ci"},
	}
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "malformed scope",
			mutate:  func(c *Config) { c.Auth.Identities[0].Scopes = []string{"not-a-scope"} },
			wantErr: "scope",
		},
		{
			name:    "unknown role in scope",
			mutate:  func(c *Config) { c.Auth.Identities[0].Scopes = []string{"macro:czar"} },
			wantErr: "scope",
		},
		{
			name:    "api key referencing unknown identity",
			mutate:  func(c *Config) { c.Auth.APIKeys[0].IdentityID = "ghost" },
			wantErr: "unknown identity",
		},
		{
			name: "duplicate identity ids",
			mutate: func(c *Config) {
				c.Auth.Identities = append(c.Auth.Identities, c.Auth.Identities[0])
			},
			wantErr: "duplicate identity",
		},
		{
			name: "duplicate override rule names",
			mutate: func(c *Config) {
				c.Guard.OverrideRules = []OverrideRuleConfig{
					{Name: "r", ActionMatch: "*"},
					{Name: "r", ActionMatch: "purge_*"},
				}
			},
			wantErr: "duplicate override rule",
		},
		{
			name:    "bad audit output",
			mutate:  func(c *Config) { c.Audit.Output = "syslog" },
			wantErr: "audit_output",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "Port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "LogLevel",
		},
		{
			name: "sqlite backend without path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.SQLitePath = ""
			},
			wantErr: "SQLitePath",
		},
		{
			name: "no auth outside dev mode",
			mutate: func(c *Config) {
				c.Auth.JWTSecret = ""
				c.Auth.APIKeys = nil
			},
			wantErr: "jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDevModeRelaxesAuth(t *testing.T) {
	cfg := Default()
	cfg.DevMode = true
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev config rejected: %v", err)
	}
	if len(cfg.Auth.Identities) != 1 || cfg.Auth.Identities[0].ID != "dev-admin" {
		t.Fatalf("dev identity not seeded: %+v", cfg.Auth.Identities)
	}

	// Existing identities are never overwritten.
	cfg2 := validConfig()
	cfg2.DevMode = true
	cfg2.SetDevDefaults()
	if len(cfg2.Auth.Identities) != 1 || cfg2.Auth.Identities[0].ID != "alice" {
		t.Fatalf("dev defaults clobbered identities: %+v", cfg2.Auth.Identities)
	}
}
