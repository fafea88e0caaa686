// Package config loads codepair configuration from YAML with environment
// variable overrides. Precedence: defaults < config file < environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBind                = "127.0.0.1:8000"
	DefaultDatabasePath        = "codepair.db"
	DefaultLanguage            = "python"
	DefaultDebounceWindow      = 600 * time.Millisecond
	DefaultConfidenceThreshold = 0.5
	DefaultInferenceTimeout    = 10 * time.Second
	DefaultDialTimeout         = 10 * time.Second
	DefaultReconnectMaxWait    = 30 * time.Second
	DefaultReconnectMaxTries   = 5
)

// Config represents the complete codepair configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Channel   ChannelConfig   `yaml:"channel"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the collaboration server
type ServerConfig struct {
	Bind         string `yaml:"bind"`
	DatabasePath string `yaml:"database_path"`
}

// InferenceConfig configures the completion service client
type InferenceConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	NetworkLogsEnabled bool          `yaml:"network_logs_enabled"`
}

// SuggestConfig configures the debounced suggestion pipeline
type SuggestConfig struct {
	DebounceWindow      time.Duration `yaml:"debounce_window"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
}

// ChannelConfig configures the session channel transport
type ChannelConfig struct {
	BaseURL     string          `yaml:"base_url"`
	DialTimeout time.Duration   `yaml:"dial_timeout"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig controls the opt-in rejoin policy after transport loss.
// The observed client had none; this stays off unless enabled.
type ReconnectConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MaxWait  time.Duration `yaml:"max_wait"`
	MaxTries int           `yaml:"max_tries"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Dir      string `yaml:"dir"`
	MinLevel string `yaml:"min_level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:         DefaultBind,
			DatabasePath: DefaultDatabasePath,
		},
		Inference: InferenceConfig{
			BaseURL:            "http://" + DefaultBind,
			Timeout:            DefaultInferenceTimeout,
			RequestsPerSecond:  0, // unlimited
			NetworkLogsEnabled: false,
		},
		Suggest: SuggestConfig{
			DebounceWindow:      DefaultDebounceWindow,
			ConfidenceThreshold: DefaultConfidenceThreshold,
		},
		Channel: ChannelConfig{
			BaseURL:     "ws://" + DefaultBind,
			DialTimeout: DefaultDialTimeout,
			Reconnect: ReconnectConfig{
				Enabled:  false,
				MaxWait:  DefaultReconnectMaxWait,
				MaxTries: DefaultReconnectMaxTries,
			},
		},
		Logging: LoggingConfig{
			Dir:      defaultLogDir(),
			MinLevel: "info",
		},
	}
}

func defaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home == "" {
		return filepath.Join(".", ".codepair", "logs")
	}
	return filepath.Join(home, ".codepair", "logs")
}

// Load loads configuration from the default location with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".codepair", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, cperrors.Wrap(err, cperrors.ErrCodeConfigLoad, "loading user config").WithContext("path", userConfigPath)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeConfigInvalid, "config validation")
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeConfigLoad, "loading config file").WithContext("path", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeConfigInvalid, "config validation")
	}

	return cfg, nil
}

// loadAndMerge loads a YAML file and merges non-zero fields into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cperrors.Wrap(err, cperrors.ErrCodeConfigParse, "parsing YAML")
	}

	mergeConfigs(cfg, &override)
	return nil
}

func mergeConfigs(base, override *Config) {
	if override == nil {
		return
	}

	if override.Server.Bind != "" {
		base.Server.Bind = override.Server.Bind
	}
	if override.Server.DatabasePath != "" {
		base.Server.DatabasePath = override.Server.DatabasePath
	}

	if override.Inference.BaseURL != "" {
		base.Inference.BaseURL = override.Inference.BaseURL
	}
	if override.Inference.Timeout != 0 {
		base.Inference.Timeout = override.Inference.Timeout
	}
	if override.Inference.RequestsPerSecond != 0 {
		base.Inference.RequestsPerSecond = override.Inference.RequestsPerSecond
	}
	if override.Inference.NetworkLogsEnabled {
		base.Inference.NetworkLogsEnabled = true
	}

	if override.Suggest.DebounceWindow != 0 {
		base.Suggest.DebounceWindow = override.Suggest.DebounceWindow
	}
	if override.Suggest.ConfidenceThreshold != 0 {
		base.Suggest.ConfidenceThreshold = override.Suggest.ConfidenceThreshold
	}

	if override.Channel.BaseURL != "" {
		base.Channel.BaseURL = override.Channel.BaseURL
	}
	if override.Channel.DialTimeout != 0 {
		base.Channel.DialTimeout = override.Channel.DialTimeout
	}
	if override.Channel.Reconnect.Enabled {
		base.Channel.Reconnect.Enabled = true
	}
	if override.Channel.Reconnect.MaxWait != 0 {
		base.Channel.Reconnect.MaxWait = override.Channel.Reconnect.MaxWait
	}
	if override.Channel.Reconnect.MaxTries != 0 {
		base.Channel.Reconnect.MaxTries = override.Channel.Reconnect.MaxTries
	}

	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.MinLevel != "" {
		base.Logging.MinLevel = override.Logging.MinLevel
	}
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEPAIR_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("CODEPAIR_DATABASE_PATH"); v != "" {
		cfg.Server.DatabasePath = v
	}
	if v := os.Getenv("CODEPAIR_INFERENCE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v, ok := envDuration("CODEPAIR_INFERENCE_TIMEOUT"); ok {
		cfg.Inference.Timeout = v
	}
	if v, ok := envBool("CODEPAIR_NETWORK_LOGS_ENABLED"); ok {
		cfg.Inference.NetworkLogsEnabled = v
	}
	if v, ok := envDuration("CODEPAIR_DEBOUNCE_WINDOW"); ok {
		cfg.Suggest.DebounceWindow = v
	}
	if v, ok := envFloat("CODEPAIR_CONFIDENCE_THRESHOLD"); ok {
		cfg.Suggest.ConfidenceThreshold = v
	}
	if v := os.Getenv("CODEPAIR_CHANNEL_URL"); v != "" {
		cfg.Channel.BaseURL = v
	}
	if v, ok := envBool("CODEPAIR_RECONNECT_ENABLED"); ok {
		cfg.Channel.Reconnect.Enabled = v
	}
	if v := os.Getenv("CODEPAIR_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("CODEPAIR_LOG_LEVEL"); v != "" {
		cfg.Logging.MinLevel = v
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Bind == "" {
		return fmt.Errorf("server.bind must not be empty")
	}
	if c.Suggest.DebounceWindow <= 0 {
		return fmt.Errorf("suggest.debounce_window must be positive, got %s", c.Suggest.DebounceWindow)
	}
	if c.Suggest.ConfidenceThreshold < 0 || c.Suggest.ConfidenceThreshold >= 1 {
		return fmt.Errorf("suggest.confidence_threshold must be in [0,1), got %g", c.Suggest.ConfidenceThreshold)
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive, got %s", c.Inference.Timeout)
	}
	if c.Channel.Reconnect.Enabled {
		if c.Channel.Reconnect.MaxWait <= 0 {
			return fmt.Errorf("channel.reconnect.max_wait must be positive, got %s", c.Channel.Reconnect.MaxWait)
		}
		if c.Channel.Reconnect.MaxTries <= 0 {
			return fmt.Errorf("channel.reconnect.max_tries must be positive, got %d", c.Channel.Reconnect.MaxTries)
		}
	}
	switch strings.ToLower(c.Logging.MinLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.min_level must be one of debug/info/warn/error, got %q", c.Logging.MinLevel)
	}
	return nil
}

func envBool(name string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func envFloat(name string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func envDuration(name string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
