// Package config loads server configuration in three layers: struct defaults,
// an optional YAML file, then EWASTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment variable names before mapping.
const EnvPrefix = "EWASTE_"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Data    DataConfig    `koanf:"data"`
	Derive  DeriveConfig  `koanf:"derive"`
	Logging LoggingConfig `koanf:"logging"`
}

type ServerConfig struct {
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

type DataConfig struct {
	Dir string `koanf:"dir"`
	// Warm loads every dataset in the background at startup.
	Warm bool `koanf:"warm"`
}

type DeriveConfig struct {
	RecoveryFraction float64 `koanf:"recovery_fraction"`
	PricePerTonneUSD float64 `koanf:"price_per_tonne_usd"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Data: DataConfig{
			Dir:  "data",
			Warm: true,
		},
		Derive: DeriveConfig{
			RecoveryFraction: 0.02,
			PricePerTonneUSD: 2000.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps lowercased, prefix-stripped variable names to koanf paths.
var envMappings = map[string]string{
	"port":                "server.port",
	"server_port":         "server.port",
	"cors_origins":        "server.cors_origins",
	"rate_limit":          "server.rate_limit",
	"data_dir":            "data.dir",
	"data_warm":           "data.warm",
	"recovery_fraction":   "derive.recovery_fraction",
	"price_per_tonne_usd": "derive.price_per_tonne_usd",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
}

var sliceConfigPaths = []string{"server.cors_origins"}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc returns "" for unknown variables so koanf skips them.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative"))
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		errs = append(errs, errors.New("data.dir is required"))
	}
	if c.Derive.RecoveryFraction < 0 || c.Derive.RecoveryFraction > 1 {
		errs = append(errs, fmt.Errorf("derive.recovery_fraction must be within [0,1]: %v", c.Derive.RecoveryFraction))
	}
	if c.Derive.PricePerTonneUSD < 0 {
		errs = append(errs, fmt.Errorf("derive.price_per_tonne_usd must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
