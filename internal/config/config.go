package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the bridge.
type Config struct {
	Server  Server        `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Alpaca  Alpaca        `yaml:"alpaca"`
	Logging Logging       `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig selects and parameterises the trading backend.
type BackendConfig struct {
	Kind           string             `yaml:"kind"`            // "sim" or "alpaca"
	DefaultAccount string             `yaml:"default_account"` // account used when requests omit one
	StartingCash   float64            `yaml:"starting_cash"`   // sim only
	Instruments    []InstrumentConfig `yaml:"instruments"`     // sim only
}

// InstrumentConfig registers one tradable instrument with the simulator.
type InstrumentConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// Alpaca holds credentials and endpoint for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.Backend.Kind != "sim" && cfg.Backend.Kind != "alpaca" {
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LISTEN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("BACKEND_KIND"); v != "" {
		cfg.Backend.Kind = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take highest priority; these are the canonical names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills the fields the original bridge defaulted implicitly:
// localhost:8181 listener, the Sim101 simulation account, and a sim backend.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8181
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "sim"
	}
	if cfg.Backend.DefaultAccount == "" {
		cfg.Backend.DefaultAccount = "Sim101"
	}
	if cfg.Backend.StartingCash == 0 {
		cfg.Backend.StartingCash = 100000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
