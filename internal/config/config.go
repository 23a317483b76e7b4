// Package config defines the pressroom configuration model, its loader
// and its validation.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `mapstructure:"server"`
	// Auth holds identities, API keys and the JWT secret.
	Auth AuthConfig `mapstructure:"auth"`
	// Guard holds permission-guard settings and override rules.
	Guard GuardConfig `mapstructure:"guard"`
	// Audit holds the audit trail settings.
	Audit AuditConfig `mapstructure:"audit"`
	// Storage selects the content store backend.
	Storage StorageConfig `mapstructure:"storage"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// DevMode seeds a default admin identity and relaxes auth for
	// local development. Never enable in production.
	DevMode bool `mapstructure:"dev_mode"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `mapstructure:"host" validate:"required"`
	// Port is the listen port.
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	// WriteTimeout bounds response writes. Must leave room for SSE
	// streams; zero disables it.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256). Required
	// unless dev mode is on.
	JWTSecret string `mapstructure:"jwt_secret"`
	// Identities are the known callers.
	Identities []IdentityConfig `mapstructure:"identities" validate:"dive"`
	// APIKeys are static keys mapped to identities. Values are hashes
	// produced by `pressroom hash-key`.
	APIKeys []APIKeyConfig `mapstructure:"api_keys" validate:"dive"`
}

// IdentityConfig declares one caller.
type IdentityConfig struct {
	// ID is the unique identity ID.
	ID string `mapstructure:"id" validate:"required"`
	// Name is the display name.
	Name string `mapstructure:"name"`
	// Scopes grant topic roles, e.g. "macro:analyst" or "global:admin".
	Scopes []string `mapstructure:"scopes" validate:"required,min=1,dive,scope"`
	// Active disables the identity when false.
	Active bool `mapstructure:"active"`
}

// APIKeyConfig maps a hashed API key to an identity.
type APIKeyConfig struct {
	// Key is the stored hash (sha256:... or argon2id hash).
	Key string `mapstructure:"key" validate:"required"`
	// IdentityID references an entry in auth.identities.
	IdentityID string `mapstructure:"identity_id" validate:"required"`
	// Name labels the key in logs.
	Name string `mapstructure:"name"`
}

// GuardConfig holds permission-guard settings.
type GuardConfig struct {
	// CacheSize bounds the decision cache.
	CacheSize int `mapstructure:"cache_size" validate:"gte=0"`
	// OverrideRules are admin-configured deny rules evaluated after
	// the static permission table.
	OverrideRules []OverrideRuleConfig `mapstructure:"override_rules" validate:"dive"`
}

// OverrideRuleConfig declares one override rule.
type OverrideRuleConfig struct {
	// Name identifies the rule in denials and logs.
	Name string `mapstructure:"name" validate:"required"`
	// ActionMatch is a glob over action types, e.g. "purge_*".
	ActionMatch string `mapstructure:"action_match" validate:"required"`
	// Condition is a CEL expression; empty means always.
	Condition string `mapstructure:"condition"`
	// HelpText is returned to the caller on denial.
	HelpText string `mapstructure:"help_text"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Output is stdout, stderr, discard or file://<path>.
	Output string `mapstructure:"output" validate:"audit_output"`
	// BufferSize is the async queue length.
	BufferSize int `mapstructure:"buffer_size" validate:"gt=0"`
	// BatchSize is the number of records per write.
	BatchSize int `mapstructure:"batch_size" validate:"gt=0"`
	// FlushInterval is how often partial batches are flushed.
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
}

// StorageConfig selects the content store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `mapstructure:"backend" validate:"oneof=memory sqlite"`
	// SQLitePath is the database file, required for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
}

// Default returns the built-in defaults, used when no config file or
// environment overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8170,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: 15 * time.Second,
		},
		Guard: GuardConfig{
			CacheSize: 1000,
		},
		Audit: AuditConfig{
			Output:        "stdout",
			BufferSize:    1000,
			BatchSize:     50,
			FlushInterval: 2 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		LogLevel: "info",
	}
}
