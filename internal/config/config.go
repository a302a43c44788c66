// Package config loads pollwatch configuration from YAML with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pollwatch configuration.
type Config struct {
	// Poll site endpoints.
	BaseURL  string `yaml:"base_url"`
	LoginURL string `yaml:"login_url"`

	// Data directory holding classes.json and the saved browser state.
	DataDir string `yaml:"data_dir"`

	Oracle   OracleConfig   `yaml:"oracle"`
	Fallback FallbackConfig `yaml:"fallback"`
	Browser  BrowserConfig  `yaml:"browser"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// OracleConfig configures the answer oracle.
type OracleConfig struct {
	APIKey     string `yaml:"api_key"`      // overridden by GEMINI_API_KEY
	APIKeyFile string `yaml:"api_key_file"` // fallback: first line of this file
	Model      string `yaml:"model"`
	Timeout    string `yaml:"timeout"`
}

// FallbackConfig configures the human-in-the-loop channel.
type FallbackConfig struct {
	// Recipient is the phone number or iCloud address texted on
	// low-confidence answers. Empty disables fallback entirely.
	Recipient    string `yaml:"recipient"`
	MessagesDB   string `yaml:"messages_db"` // defaults to ~/Library/Messages/chat.db
	PollInterval string `yaml:"poll_interval"`
	// MaxWait bounds a single fallback listen. Zero means the listen runs
	// until the prompt itself goes away.
	MaxWait string `yaml:"max_wait"`
}

// BrowserConfig configures the Chrome instance.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"` // optional explicit Chrome binary
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// MonitorConfig configures the watch loops.
type MonitorConfig struct {
	PageInterval string `yaml:"page_interval"` // per-watcher poll cadence
	TickInterval string `yaml:"tick_interval"` // scheduler roster scan cadence
	JoinTimeout  string `yaml:"join_timeout"`  // per-watcher shutdown join bound
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "https://pollev.com",
		LoginURL: "https://pollev.com/login",
		DataDir:  "data",
		Oracle: OracleConfig{
			Model:      "gemma-3-27b-it",
			APIKeyFile: "data/API_KEY_GEMINI",
			Timeout:    "60s",
		},
		Fallback: FallbackConfig{
			PollInterval: "2s",
		},
		Browser: BrowserConfig{
			Headless:            false,
			NavigationTimeoutMs: 30000,
		},
		Monitor: MonitorConfig{
			PageInterval: "500ms",
			TickInterval: "10s",
			JoinTimeout:  "5s",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for missing
// fields and environment overrides on top. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
}

// ResolveOracleKey returns the oracle API key, falling back to the key file
// when no key was set directly.
func (c *Config) ResolveOracleKey() (string, error) {
	if c.Oracle.APIKey != "" {
		return c.Oracle.APIKey, nil
	}
	if c.Oracle.APIKeyFile == "" {
		return "", fmt.Errorf("no oracle API key configured (set GEMINI_API_KEY or oracle.api_key_file)")
	}
	data, err := os.ReadFile(c.Oracle.APIKeyFile)
	if err != nil {
		return "", fmt.Errorf("read API key file %s: %w", c.Oracle.APIKeyFile, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %s is empty", c.Oracle.APIKeyFile)
	}
	return key, nil
}

// ClassesPath returns the path to the class roster file.
func (c *Config) ClassesPath() string {
	return filepath.Join(c.DataDir, "classes.json")
}

// CookiesPath returns the path of the saved login state.
func (c *Config) CookiesPath() string {
	return filepath.Join(c.DataDir, "session_state", "cookies.json")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// OracleTimeout returns the oracle call timeout.
func (c *Config) OracleTimeout() time.Duration {
	return parseDuration(c.Oracle.Timeout, 60*time.Second)
}

// FallbackPollInterval returns the fallback listen cadence.
func (c *Config) FallbackPollInterval() time.Duration {
	return parseDuration(c.Fallback.PollInterval, 2*time.Second)
}

// FallbackMaxWait returns the optional fallback wait ceiling; zero disables it.
func (c *Config) FallbackMaxWait() time.Duration {
	if c.Fallback.MaxWait == "" {
		return 0
	}
	return parseDuration(c.Fallback.MaxWait, 0)
}

// PageInterval returns the per-watcher poll cadence.
func (c *Config) PageInterval() time.Duration {
	return parseDuration(c.Monitor.PageInterval, 500*time.Millisecond)
}

// TickInterval returns the scheduler scan cadence.
func (c *Config) TickInterval() time.Duration {
	return parseDuration(c.Monitor.TickInterval, 10*time.Second)
}

// JoinTimeout returns the per-watcher shutdown join bound.
func (c *Config) JoinTimeout() time.Duration {
	return parseDuration(c.Monitor.JoinTimeout, 5*time.Second)
}

// NavigationTimeout returns the page navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	if c.Browser.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.NavigationTimeoutMs) * time.Millisecond
}
