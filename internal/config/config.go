package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/yiblet/clipvault/internal/dedup"
	"github.com/yiblet/clipvault/internal/logging"
	"github.com/yiblet/clipvault/internal/session"
)

// Config represents the clipvault configuration
type Config struct {
	DBPath          string `yaml:"db_path,omitempty"`
	BlobsDir        string `yaml:"blobs_dir,omitempty"`
	MaxContentBytes int64  `yaml:"max_content_bytes"`
	InlineTextLimit int    `yaml:"inline_text_limit"`
	DedupeTouch     string `yaml:"dedupe_touch"`
	DefaultLimit    int    `yaml:"default_limit"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
}

// maxDefaultLimit bounds the configured default page size. Explicit limits
// are not bounded.
const maxDefaultLimit = 1000

// Keys lists the configuration keys accepted by Get and Update, in display order.
var Keys = []string{
	"db-path",
	"blobs-dir",
	"max-content-bytes",
	"inline-text-limit",
	"dedupe-touch",
	"default-limit",
	"log-level",
	"log-format",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxContentBytes: dedup.DefaultMaxContentBytes,
		InlineTextLimit: dedup.DefaultInlineTextLimit,
		DedupeTouch:     string(dedup.TouchLastSeen),
		DefaultLimit:    20,
		LogLevel:        "warn",
		LogFormat:       "text",
	}
}

// SessionOptions converts the file settings into session options. The
// logger is left for the caller to attach.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		MaxContentBytes: c.MaxContentBytes,
		InlineTextLimit: c.InlineTextLimit,
		DedupeTouch:     dedup.TouchPolicy(c.DedupeTouch),
	}
}

// ConfigManager manages configuration persistence
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() (*ConfigManager, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		configPath: filepath.Join(configDir, "config.yaml"),
	}, nil
}

// NewConfigManagerWithPath creates a config manager with custom config path
func NewConfigManagerWithPath(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// Load reads the configuration from file, or returns default if file doesn't exist
func (cm *ConfigManager) Load() (*Config, error) {
	// If config file doesn't exist, return default config
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate and set defaults for missing fields
	if err := cm.validateAndSetDefaults(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Save writes the configuration to file
func (cm *ConfigManager) Save(config *Config) error {
	// Validate configuration before saving
	if err := cm.validateAndSetDefaults(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure config directory exists
	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validateAndSetDefaults validates configuration and sets defaults for missing fields
func (cm *ConfigManager) validateAndSetDefaults(config *Config) error {
	defaults := DefaultConfig()

	switch {
	case config.MaxContentBytes < 0:
		return fmt.Errorf("max_content_bytes cannot be negative")
	case config.MaxContentBytes == 0:
		config.MaxContentBytes = defaults.MaxContentBytes
	}

	switch {
	case config.InlineTextLimit < 0:
		return fmt.Errorf("inline_text_limit cannot be negative")
	case config.InlineTextLimit == 0:
		config.InlineTextLimit = defaults.InlineTextLimit
	}
	if int64(config.InlineTextLimit) > config.MaxContentBytes {
		return fmt.Errorf("inline_text_limit cannot exceed max_content_bytes")
	}

	switch {
	case config.DefaultLimit < 0:
		return fmt.Errorf("default_limit must be greater than 0")
	case config.DefaultLimit == 0:
		config.DefaultLimit = defaults.DefaultLimit
	case config.DefaultLimit > maxDefaultLimit:
		return fmt.Errorf("default_limit cannot exceed %d items", maxDefaultLimit)
	}

	policy, err := dedup.ParseTouchPolicy(config.DedupeTouch)
	if err != nil {
		return err
	}
	config.DedupeTouch = string(policy)

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return err
	}
	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}
	if err := logging.ValidateFormat(config.LogFormat); err != nil {
		return err
	}

	return nil
}

// GetConfigPath returns the path to the config file
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// Update modifies a specific configuration value
func (cm *ConfigManager) Update(key, value string) error {
	config, err := cm.Load()
	if err != nil {
		return err
	}

	switch key {
	case "db-path":
		config.DBPath = value
	case "blobs-dir":
		config.BlobsDir = value
	case "max-content-bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for max-content-bytes: %s", value)
		}
		config.MaxContentBytes = n
	case "inline-text-limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for inline-text-limit: %s", value)
		}
		config.InlineTextLimit = n
	case "dedupe-touch":
		config.DedupeTouch = value
	case "default-limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for default-limit: %s", value)
		}
		if n <= 0 {
			return fmt.Errorf("default-limit must be greater than 0")
		}
		config.DefaultLimit = n
	case "log-level":
		config.LogLevel = value
	case "log-format":
		config.LogFormat = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return cm.Save(config)
}

// Get returns the value for a specific configuration key
func (cm *ConfigManager) Get(key string) (string, error) {
	config, err := cm.Load()
	if err != nil {
		return "", err
	}
	return config.value(key)
}

func (c *Config) value(key string) (string, error) {
	switch key {
	case "db-path":
		if c.DBPath == "" {
			return "[default]", nil
		}
		return c.DBPath, nil
	case "blobs-dir":
		if c.BlobsDir == "" {
			return "[default]", nil
		}
		return c.BlobsDir, nil
	case "max-content-bytes":
		return strconv.FormatInt(c.MaxContentBytes, 10), nil
	case "inline-text-limit":
		return strconv.Itoa(c.InlineTextLimit), nil
	case "dedupe-touch":
		return c.DedupeTouch, nil
	case "default-limit":
		return strconv.Itoa(c.DefaultLimit), nil
	case "log-level":
		return c.LogLevel, nil
	case "log-format":
		return c.LogFormat, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// List returns all configuration keys and values
func (cm *ConfigManager) List() (map[string]string, error) {
	config, err := cm.Load()
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(Keys))
	for _, key := range Keys {
		v, err := config.value(key)
		if err != nil {
			return nil, err
		}
		result[key] = v
	}
	return result, nil
}
