package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and
// environment variables. If configFile is empty, pressroom.yaml/.yml is
// searched in standard locations. The search requires an explicit YAML
// extension so the binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found; ReadInConfig will return
		// ConfigFileNotFoundError, which callers treat as env-only mode.
		viper.SetConfigName("pressroom")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: PRESSROOM_SERVER_PORT etc.
	viper.SetEnvPrefix("PRESSROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for pressroom.yaml or .yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".pressroom"),
		"/etc/pressroom",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "pressroom"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment overrides.
// Arrays (identities, api_keys, override_rules) stay file-only.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.host")
	_ = viper.BindEnv("server.port")
	_ = viper.BindEnv("server.read_timeout")
	_ = viper.BindEnv("server.write_timeout")
	_ = viper.BindEnv("server.shutdown_timeout")

	_ = viper.BindEnv("auth.jwt_secret")

	_ = viper.BindEnv("guard.cache_size")

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.buffer_size")
	_ = viper.BindEnv("audit.batch_size")
	_ = viper.BindEnv("audit.flush_interval")

	_ = viper.BindEnv("storage.backend")
	_ = viper.BindEnv("storage.sqlite_path")

	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("dev_mode")
}

// Load reads the configuration file, applies environment overrides and
// defaults, then validates. Callers that need to override DevMode from
// a CLI flag use LoadRaw and validate afterwards.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadRaw reads the configuration and applies defaults without
// validating.
func LoadRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: run on env vars and defaults alone.
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the loaded config file path, empty in env-only
// mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
