package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for chainblock
type Config struct {
	Twitter       TwitterConfig      `yaml:"twitter" json:"twitter"`
	Limiter       LimiterConfig      `yaml:"limiter" json:"limiter"`
	Session       SessionConfig      `yaml:"session" json:"session"`
	Defaults      Defaults           `yaml:"defaults" json:"defaults"`
	Metrics       MetricsConfig      `yaml:"metrics" json:"metrics"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
	Export        ExportConfig       `yaml:"export" json:"export"`
}

// TwitterConfig holds platform client configuration
type TwitterConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	BearerToken       string        `yaml:"bearer_token" json:"bearer_token"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	UserCacheSize     int           `yaml:"user_cache_size" json:"user_cache_size"`
	UserCacheTTL      time.Duration `yaml:"user_cache_ttl" json:"user_cache_ttl"`
}

// LimiterConfig configures the block limiter and its backing store
type LimiterConfig struct {
	// Store is one of "memory", "file", "redis"
	Store    string        `yaml:"store" json:"store"`
	Path     string        `yaml:"path" json:"path"`
	RedisURL string        `yaml:"redis_url" json:"redis_url"`
	Max      int           `yaml:"max" json:"max"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// SessionConfig holds engine tuning knobs
type SessionConfig struct {
	MaxRunning     int           `yaml:"max_running" json:"max_running"`
	RateLimitPause time.Duration `yaml:"rate_limit_pause" json:"rate_limit_pause"`
	BatchSize      int           `yaml:"batch_size" json:"batch_size"`
	Concurrency    int           `yaml:"concurrency" json:"concurrency"`
	QuickModeLimit int           `yaml:"quick_mode_limit" json:"quick_mode_limit"`
	RewindCap      int           `yaml:"rewind_cap" json:"rewind_cap"`
	KeepCompleted  bool          `yaml:"keep_completed" json:"keep_completed"`
}

// Defaults are the user-configurable request defaults persisted between runs
type Defaults struct {
	MyFollowers         string        `yaml:"my_followers" json:"my_followers"`
	MyFollowings        string        `yaml:"my_followings" json:"my_followings"`
	Verified            string        `yaml:"verified" json:"verified"`
	IncludeUsersInBio   string        `yaml:"include_users_in_bio" json:"include_users_in_bio"`
	SkipInactive        string        `yaml:"skip_inactive" json:"skip_inactive"`
	DelayBetweenBatches time.Duration `yaml:"delay_between_batches" json:"delay_between_batches"`
	EnableAntiBlock     bool          `yaml:"enable_anti_block" json:"enable_anti_block"`
	QuickMode           bool          `yaml:"quick_mode" json:"quick_mode"`
	Recurring           time.Duration `yaml:"recurring" json:"recurring"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	OnComplete  bool `yaml:"on_complete" json:"on_complete"`
	OnError     bool `yaml:"on_error" json:"on_error"`
	OnRateLimit bool `yaml:"on_rate_limit" json:"on_rate_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	JSON    bool   `yaml:"json" json:"json"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// ExportConfig controls where blocklist exports are written
type ExportConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Format    string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:           "https://api.twitter.com/1.1",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestsPerMinute: 180,
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			UserCacheSize:     10000,
			UserCacheTTL:      10 * time.Minute,
		},
		Limiter: LimiterConfig{
			Store:  "file",
			Max:    500,
			Window: 3 * time.Hour,
		},
		Session: SessionConfig{
			MaxRunning:     3,
			RateLimitPause: time.Minute,
			BatchSize:      0,
			Concurrency:    10,
			QuickModeLimit: 200,
			RewindCap:      100,
			KeepCompleted:  false,
		},
		Defaults: Defaults{
			MyFollowers:       "Skip",
			MyFollowings:      "Skip",
			Verified:          "Block",
			IncludeUsersInBio: "never",
			SkipInactive:      "never",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
		Notifications: NotificationConfig{
			Enabled:     true,
			OnComplete:  true,
			OnError:     true,
			OnRateLimit: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Export: ExportConfig{
			Directory: "./exports",
			Format:    "csv",
		},
	}
}

// LoadFromEnv loads configuration from CHAINBLOCK_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("CHAINBLOCK_BEARER_TOKEN"); v != "" {
		c.Twitter.BearerToken = v
	}
	if v := os.Getenv("CHAINBLOCK_API_BASE_URL"); v != "" {
		c.Twitter.BaseURL = v
	}
	if v := os.Getenv("CHAINBLOCK_USER_AGENT"); v != "" {
		c.Twitter.UserAgent = v
	}
	if v := os.Getenv("CHAINBLOCK_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINBLOCK_REQUESTS_PER_MINUTE: %w", err))
		} else if n > 0 {
			c.Twitter.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("CHAINBLOCK_LIMITER_STORE"); v != "" {
		c.Limiter.Store = v
	}
	if v := os.Getenv("CHAINBLOCK_REDIS_URL"); v != "" {
		c.Limiter.RedisURL = v
	}
	if v := os.Getenv("CHAINBLOCK_MAX_RUNNING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAINBLOCK_MAX_RUNNING: %w", err))
		} else if n > 0 {
			c.Session.MaxRunning = n
		}
	}
	if v := os.Getenv("CHAINBLOCK_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("CHAINBLOCK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHAINBLOCK_EXPORT_DIR"); v != "" {
		c.Export.Directory = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".chainblock.yaml",
		".chainblock.yml",
		filepath.Join(home, ".config", "chainblock", "config.yaml"),
		filepath.Join(home, ".config", "chainblock", "config.yml"),
		filepath.Join(home, ".chainblock.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes and defaults are persisted
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chainblock", "config.yaml")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "chainblock", "config.yaml")
}

// DataDir returns the per-OS directory for state files such as the limiter
// counters and the session history.
func DataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "chainblock"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "chainblock"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "chainblock"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "chainblock"), nil
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("twitter base URL is required"))
	}
	if c.Twitter.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Twitter.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Twitter.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	switch c.Limiter.Store {
	case "memory", "file":
	case "redis":
		if c.Limiter.RedisURL == "" {
			errs = append(errs, errors.New("redis limiter store requires redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown limiter store %q", c.Limiter.Store))
	}
	if c.Limiter.Max <= 0 {
		errs = append(errs, errors.New("limiter max must be positive"))
	}
	if c.Limiter.Window <= 0 {
		errs = append(errs, errors.New("limiter window must be positive"))
	}

	if c.Session.MaxRunning <= 0 {
		errs = append(errs, errors.New("max running sessions must be positive"))
	}
	if c.Session.MaxRunning > 10 {
		errs = append(errs, errors.New("max running sessions should not exceed 10"))
	}
	if c.Session.Concurrency <= 0 {
		errs = append(errs, errors.New("session concurrency must be positive"))
	}
	if c.Session.RateLimitPause <= 0 {
		errs = append(errs, errors.New("rate limit pause must be positive"))
	}
	if c.Session.BatchSize < 0 {
		errs = append(errs, errors.New("batch size cannot be negative"))
	}

	if err := c.Defaults.Validate(); err != nil {
		errs = append(errs, err)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	switch c.Export.Format {
	case "csv", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown export format %q", c.Export.Format))
	}

	return errors.Join(errs...)
}

// Validate checks persisted defaults against the accepted verb and policy names
func (d Defaults) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("defaults.%s: %q is not one of %s", field, value, strings.Join(allowed, ", ")))
	}

	check("my_followers", d.MyFollowers, "Skip", "Mute", "Block", "BlockAndUnBlock")
	check("my_followings", d.MyFollowings, "Skip", "Mute", "Block", "UnFollow", "BlockAndUnBlock")
	check("verified", d.Verified, "Skip", "Mute", "Block")
	check("include_users_in_bio", d.IncludeUsersInBio, "never", "all", "smart")
	check("skip_inactive", d.SkipInactive, "never", "1y", "2y", "3y")
	if d.DelayBetweenBatches < 0 {
		errs = append(errs, errors.New("defaults.delay_between_batches cannot be negative"))
	}
	if d.Recurring < 0 {
		errs = append(errs, errors.New("defaults.recurring cannot be negative"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
	if v, ok := flags["max-running"].(int); ok && v > 0 {
		c.Session.MaxRunning = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Session.Concurrency = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v > 0 {
		c.Twitter.RequestsPerMinute = v
	}
	if v, ok := flags["limiter-store"].(string); ok && v != "" {
		c.Limiter.Store = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v, ok := flags["export-dir"].(string); ok && v != "" {
		c.Export.Directory = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".chainblock.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
