// Package config provides configuration management for the SANAA360 creator CLI.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the backend base URL, authentication
// directory, proxy configuration, and OAuth callback behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning values applied when the configuration file leaves them unset.
// The backoff defaults match the callback retry policy documented in README.md:
// base 2s, growth 1.5x, cap 10s, at most 5 automatic attempts.
const (
	DefaultBackendBaseURL = "https://sanaa-360-backend.onrender.com/api/v1"
	DefaultRequestTimeout = 10 * time.Second
	DefaultRefreshLead    = 15 * time.Minute
	DefaultCallbackPort   = 8090
	DefaultBaseDelay      = 2 * time.Second
	DefaultGrowthFactor   = 1.5
	DefaultMaxDelay       = 10 * time.Second
	DefaultMaxAttempts    = 5
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// BackendBaseURL is the base URL of the SANAA360 backend API.
	BackendBaseURL string `yaml:"backend-base-url" json:"backend-base-url"`

	// AuthDir is the directory where auth state (session snapshot, backend
	// session cookie) is persisted.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables verbose logging output.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to rotating files under AuthDir.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// RequestTimeoutSeconds bounds every HTTP call to the backend. <= 0 uses the default.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// RefreshLeadMinutes is the lookahead window for proactive token refresh.
	// A token expiring within this window is refreshed before authenticated actions.
	RefreshLeadMinutes int `yaml:"refresh-lead-minutes" json:"refresh-lead-minutes"`

	// StrictState makes an OAuth state mismatch a terminal failure instead of a
	// logged warning. The warning is emitted either way.
	StrictState bool `yaml:"strict-state" json:"strict-state"`

	// Callback configures the local OAuth callback server and retry policy.
	Callback CallbackConfig `yaml:"callback" json:"callback"`
}

// CallbackConfig holds the local callback server and retry policy settings.
type CallbackConfig struct {
	// Port is the port the local callback server listens on.
	Port int `yaml:"port" json:"port"`

	// BaseDelayMS is the initial retry delay in milliseconds.
	BaseDelayMS int `yaml:"base-delay-ms" json:"base-delay-ms"`

	// GrowthFactor multiplies the delay after each network-class failure.
	GrowthFactor float64 `yaml:"growth-factor" json:"growth-factor"`

	// MaxDelayMS caps the retry delay in milliseconds.
	MaxDelayMS int `yaml:"max-delay-ms" json:"max-delay-ms"`

	// MaxAttempts bounds automatic retries. Manual retry resets the count.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`
}

// LoadConfig reads the YAML file at configFile and returns the parsed
// configuration with defaults applied. A missing file yields the defaults.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s failed: %w", configFile, err)
		}
	} else if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s failed: %w", configFile, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BackendBaseURL) == "" {
		c.BackendBaseURL = DefaultBackendBaseURL
	}
	c.BackendBaseURL = strings.TrimRight(c.BackendBaseURL, "/")
	if strings.TrimSpace(c.AuthDir) == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.AuthDir = filepath.Join(home, ".sanaa360")
		} else {
			c.AuthDir = ".sanaa360"
		}
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = int(DefaultRequestTimeout / time.Second)
	}
	if c.RefreshLeadMinutes <= 0 {
		c.RefreshLeadMinutes = int(DefaultRefreshLead / time.Minute)
	}
	if c.Callback.Port <= 0 {
		c.Callback.Port = DefaultCallbackPort
	}
	if c.Callback.BaseDelayMS <= 0 {
		c.Callback.BaseDelayMS = int(DefaultBaseDelay / time.Millisecond)
	}
	if c.Callback.GrowthFactor <= 1 {
		c.Callback.GrowthFactor = DefaultGrowthFactor
	}
	if c.Callback.MaxDelayMS <= 0 {
		c.Callback.MaxDelayMS = int(DefaultMaxDelay / time.Millisecond)
	}
	if c.Callback.MaxAttempts <= 0 {
		c.Callback.MaxAttempts = DefaultMaxAttempts
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RefreshLead returns the proactive refresh lookahead window as a duration.
func (c *Config) RefreshLead() time.Duration {
	return time.Duration(c.RefreshLeadMinutes) * time.Minute
}

// BaseDelay returns the initial retry delay as a duration.
func (c *CallbackConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the retry delay cap as a duration.
func (c *CallbackConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// ResolveAuthDir expands a leading "~" in dir and returns an absolute path.
func ResolveAuthDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve home dir failed: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Abs(dir)
}
