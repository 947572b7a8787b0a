// ABOUTME: Configuration loading and parsing for the chatpilot facade daemons
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chatpilot configuration
type Config struct {
	StateDir string        `yaml:"state_dir"`
	HTTP     HTTPConfig    `yaml:"http"`
	Billing  BillingConfig `yaml:"billing"`
	Logging  LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds the control API configuration
type HTTPConfig struct {
	// Addr defaults to loopback only; exposing the control API beyond the
	// local machine is an explicit operator decision.
	Addr         string  `yaml:"addr"`
	JWTSecret    string  `yaml:"jwt_secret"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// BillingConfig holds the remote billing collaborator configuration
type BillingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	InstallID string        `yaml:"install_id"`
	Timeout   time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and defaults are
// applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file exists.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := parseDurations(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() error {
	if c.StateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		c.StateDir = filepath.Join(homeDir, ".local", "share", "chatpilot")
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8787"
	}
	if c.HTTP.RateLimitRPS == 0 {
		c.HTTP.RateLimitRPS = 10
	}
	if c.Billing.BaseURL == "" {
		c.Billing.BaseURL = "https://billing.chatpilot.app"
	}
	if c.Billing.TimeoutRaw == "" {
		c.Billing.TimeoutRaw = "10s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Billing.BaseURL == "" {
		return fmt.Errorf("billing.base_url is required")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Billing.TimeoutRaw != "" {
		cfg.Billing.Timeout, err = time.ParseDuration(cfg.Billing.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing billing timeout %q: %w", cfg.Billing.TimeoutRaw, err)
		}
	}

	return nil
}
