// Package config loads RShield's on-disk configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshield/rshield/internal/errs"
)

// Config holds process-level configuration: where state lives, how the
// orchestrator paces itself, and which optional subsystems are enabled.
type Config struct {
	// Paths
	StateDir string `yaml:"state_dir"`

	// Orchestrator pacing
	TaskIntervalMinSecs int `yaml:"task_interval_min_secs"`
	TaskIntervalMaxSecs int `yaml:"task_interval_max_secs"`
	ThreadNum           int `yaml:"thread_num"`

	// Proxy
	ProxyListenAddr   string `yaml:"proxy_listen_addr"`
	ProxyInterceptTLS bool   `yaml:"proxy_intercept_tls"`
	CADir             string `yaml:"ca_dir"`

	// Subsystem enable flags
	EnableRawBruteforce bool `yaml:"enable_raw_bruteforce"`
	EnablePluginRuntime bool `yaml:"enable_plugin_runtime"`
	EnableProxy         bool `yaml:"enable_proxy"`

	// VulnerabilityScanLevel gates the RCE built-in scanner's payload
	// catalogue (1: cmd, 2: advanced_cmd, 3: code) per spec §4.6.
	VulnerabilityScanLevel int `yaml:"vulnerability_scan_level"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() Config {
	return Config{
		StateDir:               defaultStateDir(),
		TaskIntervalMinSecs:    20,
		TaskIntervalMaxSecs:    40,
		ThreadNum:              10,
		ProxyListenAddr:        "127.0.0.1:8889",
		ProxyInterceptTLS:      true,
		CADir:                  "",
		EnableRawBruteforce:    true,
		EnablePluginRuntime:    true,
		EnableProxy:            true,
		VulnerabilityScanLevel: 2,
		LogLevel:               "INFO",
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rshield"
	}
	return filepath.Join(home, ".rshield")
}

// Load reads configuration from a YAML file with env overrides,
// falling back to defaults for any field the file omits.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, errs.Wrap(errs.Config, "read config", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.Config, "parse config", err)
	}

	if v := os.Getenv("RSHIELD_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("RSHIELD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}

	if cfg.TaskIntervalMinSecs < 1 {
		cfg.TaskIntervalMinSecs = 1
	}
	if cfg.TaskIntervalMaxSecs < cfg.TaskIntervalMinSecs {
		cfg.TaskIntervalMaxSecs = cfg.TaskIntervalMinSecs
	}
	if cfg.ThreadNum < 1 {
		cfg.ThreadNum = 1
	}
	if cfg.ThreadNum > 100 {
		cfg.ThreadNum = 100
	}

	return &cfg, nil
}

// DBPath returns the embedded database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.StateDir, "rshiled.db")
}

// CertsDir returns the CA + leaf cert cache directory.
func (c *Config) CertsDir() string {
	if c.CADir != "" {
		return c.CADir
	}
	return filepath.Join(c.StateDir, "certs")
}

// PluginsDir returns the root of the plugin script tree.
func (c *Config) PluginsDir() string {
	return filepath.Join(c.StateDir, "plugins")
}

// LogsDir returns the rolling daily log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// EnsureDirs creates every directory this config references.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.StateDir, c.CertsDir(), c.PluginsDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}
