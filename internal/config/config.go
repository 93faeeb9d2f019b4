package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Socket      SocketConfig      `yaml:"socket"`
	I2C         I2CConfig         `yaml:"i2c"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`
	Database    DatabaseConfig    `yaml:"database"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Log         LogConfig         `yaml:"log"`
	Healthcheck HealthcheckConfig `yaml:"healthcheck"`
	Script      string            `yaml:"script"` // optional Lua startup script
}

// SocketConfig contains the client endpoint settings
type SocketConfig struct {
	Path string `yaml:"path"`
}

// I2CConfig contains LED controller bus settings
type I2CConfig struct {
	Device  string `yaml:"device"`
	Address int    `yaml:"address"`
}

// ReconcilerConfig contains reconciler settings
type ReconcilerConfig struct {
	Interval Duration `yaml:"interval"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains command audit ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RetentionDays   int      `yaml:"retention_days"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// Retention returns the retention window as a duration
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Socket.Path == "" {
		cfg.Socket.Path = "/var/run/ugreen-ledd.sock"
	}
	if cfg.I2C.Device == "" {
		cfg.I2C.Device = "/dev/i2c-1"
	}
	if cfg.I2C.Address == 0 {
		cfg.I2C.Address = 0x3a
	}
	if cfg.Reconciler.Interval == 0 {
		cfg.Reconciler.Interval = Duration(50 * time.Millisecond)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./ledd.sqlite"
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "127.0.0.1"
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Socket:      SocketConfig{Path: "/var/run/ugreen-ledd.sock"},
		I2C:         I2CConfig{Device: "/dev/i2c-1", Address: 0x3a},
		Reconciler:  ReconcilerConfig{Interval: Duration(50 * time.Millisecond)},
		Database:    DatabaseConfig{Path: "./ledd.sqlite"},
		Ledger:      LedgerConfig{RetentionDays: 30, CleanupInterval: Duration(24 * time.Hour)},
		Log:         LogConfig{Level: "info"},
		Healthcheck: HealthcheckConfig{Host: "127.0.0.1", Port: 9090},
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
