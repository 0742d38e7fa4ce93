package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/dwell/config.yaml"

// Config holds all dwell configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Capture  CaptureConfig  `yaml:"capture"`
	Storage  StorageConfig  `yaml:"storage"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TrackingConfig struct {
	IdleThresholdSeconds int      `yaml:"idle_threshold_seconds"`
	FlushIntervalSeconds int      `yaml:"flush_interval_seconds"`
	AlarmName            string   `yaml:"alarm_name"`
	IgnoredSchemes       []string `yaml:"ignored_schemes"`
	QueueSize            int      `yaml:"queue_size"`
}

type CaptureConfig struct {
	UseDefaultDenylist bool     `yaml:"use_default_denylist"`
	DenylistDomains    []string `yaml:"denylist_domains"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AuthToken      string `yaml:"auth_token"`
	MaxRequestSize int    `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// FlushInterval returns the periodic commit cadence.
func (t TrackingConfig) FlushInterval() time.Duration {
	return time.Duration(t.FlushIntervalSeconds) * time.Second
}

// IdleThreshold returns the idle detection threshold reported to the extension.
func (t TrackingConfig) IdleThreshold() time.Duration {
	return time.Duration(t.IdleThresholdSeconds) * time.Second
}

// Denylist returns the effective set of domains that are never tracked.
func (c CaptureConfig) Denylist() []string {
	var out []string
	if c.UseDefaultDenylist {
		out = append(out, DefaultDenylistDomains()...)
	}
	return append(out, c.DenylistDomains...)
}

// DatabasePath resolves the SQLite ledger location, expanding a leading ~.
func (s StorageConfig) DatabasePath() (string, error) {
	if s.SQLiteFile == ":memory:" {
		return s.SQLiteFile, nil
	}
	dir, err := expandPath(s.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.SQLiteFile), nil
}

// Address returns the host:port the daemon listens on.
func (d DaemonConfig) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Validate rejects configurations the tracker cannot run with.
func (c *Config) Validate() error {
	if c.Tracking.FlushIntervalSeconds <= 0 {
		return fmt.Errorf("tracking.flush_interval_seconds must be > 0, got %d", c.Tracking.FlushIntervalSeconds)
	}
	if c.Tracking.IdleThresholdSeconds < 15 {
		// browsers refuse idle detection intervals below 15s
		return fmt.Errorf("tracking.idle_threshold_seconds must be >= 15, got %d", c.Tracking.IdleThresholdSeconds)
	}
	if c.Tracking.AlarmName == "" {
		return fmt.Errorf("tracking.alarm_name must not be empty")
	}
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	return nil
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML
// or fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// ResolvePath returns path with ~ expanded, or the expanded default config
// path when path is empty.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	return expandPath(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
