package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the optional YAML file layered under the environment.
const EnvConfigFile = "SCAN_CONSOLE_CONFIG"

// Config holds application configuration
type Config struct {
	ServerAddr  string        `yaml:"server_addr"`
	Environment string        `yaml:"environment"`
	LogLevel    string        `yaml:"log_level"`
	Backend     BackendConfig `yaml:"backend"`
	Probe       ProbeConfig   `yaml:"probe"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// BackendConfig points at the WMS backend
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProbeConfig holds defaults applied to probe requests
type ProbeConfig struct {
	DefaultWarehouseID int    `yaml:"default_warehouse_id"`
	DeviceID           string `yaml:"device_id"`
}

// TracingConfig holds OTLP export settings
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddr:  ":8090",
		Environment: "development",
		LogLevel:    "info",
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		Probe: ProbeConfig{
			DefaultWarehouseID: 1,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, the
// optional YAML file named by SCAN_CONSOLE_CONFIG and finally the
// environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Backend.BaseURL = strings.TrimRight(getEnv("WMS_BACKEND_URL", c.Backend.BaseURL), "/")
	c.Probe.DeviceID = getEnv("PROBE_DEVICE_ID", c.Probe.DeviceID)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)

	if v := os.Getenv("WMS_BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid WMS_BACKEND_TIMEOUT %q: %w", v, err)
		}
		c.Backend.Timeout = d
	}

	if v := os.Getenv("DEFAULT_WAREHOUSE_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_WAREHOUSE_ID %q: %w", v, err)
		}
		c.Probe.DefaultWarehouseID = n
	}

	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRACING_ENABLED %q: %w", v, err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

// Validate checks the invariants the service relies on
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend base url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Probe.DefaultWarehouseID < 1 {
		return fmt.Errorf("default warehouse id must be >= 1, got %d", c.Probe.DefaultWarehouseID)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
