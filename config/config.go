// Package config loads the application configuration from defaults, an
// optional YAML file, and STEPVIS_* environment variables, in that order of
// precedence (lowest to highest).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/danielterwiel/stepvis/guard"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Guard   guard.Config  `mapstructure:"guard"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EngineConfig holds the WASM engine settings.
type EngineConfig struct {
	DiskCache     bool   `mapstructure:"disk_cache"`
	CacheDir      string `mapstructure:"cache_dir"`
	MemoryLimitMB int    `mapstructure:"memory_limit_mb"`
	Precompile    bool   `mapstructure:"precompile"`
}

// CatalogConfig holds the exercise catalog settings.
type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads configuration from config.yaml in the working directory or
// ./config, falling back to defaults when no file exists.
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile loads configuration from an explicit file path. An empty path
// means search the default locations; a missing explicit file is an error,
// a missing default file is not.
func NewFromFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("stepvis")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)

	v.SetDefault("guard.max_loop_iterations", guard.DefaultMaxLoopIterations)
	v.SetDefault("guard.max_recursion_depth", guard.DefaultMaxRecursionDepth)
	v.SetDefault("guard.external_timeout", guard.DefaultExternalTimeout)
	v.SetDefault("guard.disable_loop_injection", false)
	v.SetDefault("guard.disable_recursion_tracking", false)

	v.SetDefault("engine.disk_cache", true)
	v.SetDefault("engine.cache_dir", "")
	v.SetDefault("engine.memory_limit_mb", 256)
	v.SetDefault("engine.precompile", true)

	v.SetDefault("catalog.dir", "exercises")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, continue with defaults.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate range-checks the configuration. The guard section is normalized
// in place so downstream consumers see the effective limits.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got: %d", c.Server.Port)
	}

	if c.Engine.MemoryLimitMB < 0 {
		return fmt.Errorf("engine.memory_limit_mb must not be negative, got: %d", c.Engine.MemoryLimitMB)
	}

	normalized, err := guard.Validate(c.Guard)
	if err != nil {
		return err
	}
	c.Guard = normalized

	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MemoryPages converts the configured memory limit to 64KiB WASM pages.
// Zero means no explicit limit.
func (e EngineConfig) MemoryPages() uint32 {
	return uint32(e.MemoryLimitMB) * 16
}
