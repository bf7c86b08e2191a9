// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Supported backend names
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Defaults applied when a key is absent
const (
	DefaultTimerMinutes = 25
	DefaultDueSoonDays  = 3
)

// Config represents the application configuration
type Config struct {
	Backends       BackendsConfig     `yaml:"backends"`
	DefaultBackend string             `yaml:"default_backend"`
	NoPrompt       bool               `yaml:"no_prompt"`
	OutputFormat   string             `yaml:"output_format"`
	DueSoonDays    *int               `yaml:"due_soon_days"`
	History        HistoryConfig      `yaml:"history"`
	Timer          TimerConfig        `yaml:"timer"`
	Notification   NotificationConfig `yaml:"notification"`
}

// BackendsConfig holds configuration for all backends
type BackendsConfig struct {
	JSON   FileBackendConfig `yaml:"json"`
	SQLite FileBackendConfig `yaml:"sqlite"`
}

// FileBackendConfig holds the storage location of a local backend
type FileBackendConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig holds undo history settings
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"` // 0 keeps every entry
}

// TimerConfig holds focus timer settings
type TimerConfig struct {
	DefaultMinutes int `yaml:"default_minutes"`
}

// NotificationConfig holds end-of-timer notification settings
type NotificationConfig struct {
	OSEnabled  *bool  `yaml:"os_enabled"`
	LogEnabled bool   `yaml:"log_enabled"`
	LogPath    string `yaml:"log_path"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		DefaultBackend: BackendJSON,
		OutputFormat:   "text",
		Timer:          TimerConfig{DefaultMinutes: DefaultTimerMinutes},
	}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the documented sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults for unset keys.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills unset fields and expands paths
func (c *Config) applyDefaults() {
	if c.DefaultBackend == "" {
		c.DefaultBackend = BackendJSON
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.Timer.DefaultMinutes == 0 {
		c.Timer.DefaultMinutes = DefaultTimerMinutes
	}
	if c.Backends.JSON.Path == "" {
		c.Backends.JSON.Path = filepath.Join(GetDataDir(), "tasks.json")
	}
	if c.Backends.SQLite.Path == "" {
		c.Backends.SQLite.Path = filepath.Join(GetDataDir(), "tasks.db")
	}
	if c.Notification.LogPath == "" {
		c.Notification.LogPath = filepath.Join(GetDataDir(), "notifications.log")
	}

	c.Backends.JSON.Path = ExpandPath(c.Backends.JSON.Path)
	c.Backends.SQLite.Path = ExpandPath(c.Backends.SQLite.Path)
	c.Notification.LogPath = ExpandPath(c.Notification.LogPath)
}

// save writes the documented sample configuration to path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.DefaultBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown default_backend: %q (must be 'json' or 'sqlite')", c.DefaultBackend)
	}

	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative, got %d", c.History.MaxEntries)
	}
	if c.Timer.DefaultMinutes < 0 {
		return fmt.Errorf("timer.default_minutes must not be negative, got %d", c.Timer.DefaultMinutes)
	}
	if c.DueSoonDays != nil && *c.DueSoonDays < 0 {
		return fmt.Errorf("due_soon_days must not be negative, got %d", *c.DueSoonDays)
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat, backendName string) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
	if backendName != "" {
		c.DefaultBackend = backendName
	}
}

// GetBackendPath returns the storage path of the named backend.
func (c *Config) GetBackendPath(name string) string {
	switch name {
	case BackendSQLite:
		return c.Backends.SQLite.Path
	default:
		return c.Backends.JSON.Path
	}
}

// GetHistoryLimit returns the undo history cap. 0 means unbounded.
func (c *Config) GetHistoryLimit() int {
	if c.History.MaxEntries < 0 {
		return 0
	}
	return c.History.MaxEntries
}

// GetTimerMinutes returns the default focus timer length.
// Returns 25 if not configured.
func (c *Config) GetTimerMinutes() int {
	if c.Timer.DefaultMinutes <= 0 {
		return DefaultTimerMinutes
	}
	return c.Timer.DefaultMinutes
}

// GetDueSoonDays returns the due-soon window in days.
// Returns 3 if not configured; 0 limits the marker to tasks due today.
func (c *Config) GetDueSoonDays() int {
	if c.DueSoonDays == nil || *c.DueSoonDays < 0 {
		return DefaultDueSoonDays
	}
	return *c.DueSoonDays
}

// IsOSNotificationEnabled returns true if desktop notifications are enabled.
// Returns true (default) if not configured.
func (c *Config) IsOSNotificationEnabled() bool {
	if c.Notification.OSEnabled == nil {
		return true
	}
	return *c.Notification.OSEnabled
}

// IsLogNotificationEnabled returns true if notifications are appended to a log file.
func (c *Config) IsLogNotificationEnabled() bool {
	return c.Notification.LogEnabled
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "tasktree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "tasktree")
	}
	return filepath.Join(home, fallbackPath, "tasktree")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultConfigPath returns the config file location used when none is given
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
