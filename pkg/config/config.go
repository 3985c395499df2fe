package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to any setting left unset by the config file and
// environment.
const (
	DefaultHTTPAddr = ":8080"
	DefaultEndpoint = "/entries"
	DefaultCapacity = 10
)

type Config struct {
	HTTPAddr       string `yaml:"http_addr"`
	GRPCAddr       string `yaml:"grpc_addr"`
	Endpoint       string `yaml:"endpoint"`
	Capacity       int    `yaml:"capacity"`
	RequestLogging *bool  `yaml:"request_logging"`
}

// LoadConfig loads configuration from a YAML file if path is provided,
// then applies environment variable overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	// capacity is preset so that an explicit zero from the file or
	// environment reaches Validate
	cfg := Config{Capacity: DefaultCapacity}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	// Set defaults if not provided
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RequestLogging == nil {
		enabled := true
		cfg.RequestLogging = &enabled
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values the service cannot
// run with.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("endpoint must start with '/', got %q", c.Endpoint)
	}
	if c.Endpoint != "/" && strings.HasSuffix(c.Endpoint, "/") {
		return fmt.Errorf("endpoint must not end with '/', got %q", c.Endpoint)
	}
	return nil
}

// LogRequests reports whether every HTTP request should be logged.
func (c *Config) LogRequests() bool {
	return c.RequestLogging == nil || *c.RequestLogging
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("KV_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("KV_CAPACITY"); v != "" {
		capacity, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KV_CAPACITY value: %w", err)
		}
		cfg.Capacity = capacity
	}
	if v := os.Getenv("REQUEST_LOGGING"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_LOGGING value: %w", err)
		}
		cfg.RequestLogging = &enabled
	}
	return nil
}
