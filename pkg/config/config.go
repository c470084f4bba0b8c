// Package config loads service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illmade-knight/go-dogbreeds/pkg/dogapi"
	"github.com/illmade-knight/go-dogbreeds/pkg/microservice"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the sub-breed lookup service.
type Config struct {
	microservice.BaseConfig `yaml:",inline"`

	DogAPI dogapi.Config `yaml:"dog_api"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns a Config populated with working defaults.
func Default() *Config {
	return &Config{
		BaseConfig: microservice.BaseConfig{
			LogLevel:    "info",
			HTTPPort:    ":8080",
			ServiceName: "subbreeds",
		},
		DogAPI: dogapi.Config{
			BaseURL: dogapi.DefaultBaseURL,
			Timeout: 10 * time.Second,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values Load cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("http_port must not be empty"))
	}
	if c.DogAPI.Timeout < 0 {
		errs = append(errs, errors.New("dog_api.timeout must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
