package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig represents relay server configuration
type RelayConfig struct {
	Address   string          `yaml:"address"`
	TLS       TLSConfig       `yaml:"tls"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Scripts   ScriptConfig    `yaml:"scripts"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// HeartbeatConfig controls the liveness probe and eviction timing
type HeartbeatConfig struct {
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
	PongTimeoutSeconds  int `yaml:"pong_timeout_seconds"`
}

// PingInterval returns the probe interval as a duration
func (h HeartbeatConfig) PingInterval() time.Duration {
	return time.Duration(h.PingIntervalSeconds) * time.Second
}

// PongTimeout returns the eviction threshold as a duration
func (h HeartbeatConfig) PongTimeout() time.Duration {
	return time.Duration(h.PongTimeoutSeconds) * time.Second
}

// ScriptConfig controls which script files may be dispatched
type ScriptConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DatabaseConfig represents dispatch log storage settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // file path for sqlite, DSN for mysql
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *RelayConfig {
	return &RelayConfig{
		Address: ":13377",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Heartbeat: HeartbeatConfig{
			PingIntervalSeconds: 30,
			PongTimeoutSeconds:  90,
		},
		Scripts: ScriptConfig{
			AllowedExtensions: []string{".lua", ".luau", ".txt"},
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./dispatches.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*RelayConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *RelayConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *RelayConfig) {
	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		config.Address = addr
	}

	if dbType := os.Getenv("RELAY_DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("RELAY_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if interval := os.Getenv("PING_INTERVAL_SECONDS"); interval != "" {
		if val, err := strconv.Atoi(interval); err == nil {
			config.Heartbeat.PingIntervalSeconds = val
		}
	}

	if timeout := os.Getenv("PONG_TIMEOUT_SECONDS"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil {
			config.Heartbeat.PongTimeoutSeconds = val
		}
	}
}

// Validate validates the configuration
func (c *RelayConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.Heartbeat.PingIntervalSeconds < 1 {
		return fmt.Errorf("ping interval must be at least 1 second")
	}

	if c.Heartbeat.PongTimeoutSeconds < c.Heartbeat.PingIntervalSeconds {
		return fmt.Errorf("pong timeout must be at least the ping interval")
	}

	if len(c.Scripts.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed script extension is required")
	}

	for _, ext := range c.Scripts.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("allowed extension %q must start with a dot", ext)
		}
	}

	switch c.Database.Type {
	case "sqlite", "mysql", "":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// AllowsExtension reports whether a script file extension is allowed.
// Comparison is case-insensitive.
func (c *RelayConfig) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.Scripts.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// String returns a string representation of the configuration (for logging)
func (c *RelayConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, DB: %s, TLS: %v, PingInterval: %ds, PongTimeout: %ds}",
		c.Address, c.Database.Type, c.TLS.Enabled,
		c.Heartbeat.PingIntervalSeconds, c.Heartbeat.PongTimeoutSeconds)
}
