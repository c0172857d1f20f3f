// Package config handles configuration loading and management for Foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Foreman.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	State     StateConfig     `mapstructure:"state"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// MaxConcurrency caps how many tasks run at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// FailurePolicy is "abort" or "best_effort".
	FailurePolicy string `mapstructure:"failure_policy"`
	Retry         RetryConfig `mapstructure:"retry"`
}

// RetryConfig holds retry settings for transient task failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// PlannerConfig holds LLM planner settings.
type PlannerConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// EstimatorConfig holds cost estimation settings.
type EstimatorConfig struct {
	// CostTable is the path to a YAML rate table. Empty means built-in rates.
	CostTable string `mapstructure:"cost_table"`
	// WatchTable reloads the rate table when the file changes.
	WatchTable bool `mapstructure:"watch_table"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database path. Empty means the XDG default.
	DBPath string `mapstructure:"db_path"`
	// RetentionDays prunes terminal executions older than this. 0 keeps everything.
	RetentionDays int `mapstructure:"retention_days"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FOREMAN_*, ANTHROPIC_API_KEY)
// 2. Project config (foreman.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	v.BindEnv("planner.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("planner.model", "FOREMAN_MODEL")
	v.BindEnv("engine.max_concurrency", "FOREMAN_MAX_CONCURRENCY")
	v.BindEnv("engine.failure_policy", "FOREMAN_FAILURE_POLICY")
	v.BindEnv("state.db_path", "FOREMAN_DB_PATH")
	v.BindEnv("estimator.cost_table", "FOREMAN_COST_TABLE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Planner.APIKey = expandEnv(cfg.Planner.APIKey)
	cfg.State.DBPath = expandEnv(cfg.State.DBPath)
	cfg.Estimator.CostTable = expandEnv(cfg.Estimator.CostTable)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Planner.APIKey = expandEnv(cfg.Planner.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("engine.max_concurrency must be at least 1, got %d", c.Engine.MaxConcurrency)
	}
	switch c.Engine.FailurePolicy {
	case "abort", "best_effort":
	default:
		return fmt.Errorf("engine.failure_policy must be \"abort\" or \"best_effort\", got %q", c.Engine.FailurePolicy)
	}
	if c.Engine.Retry.MaxAttempts < 1 {
		return fmt.Errorf("engine.retry.max_attempts must be at least 1, got %d", c.Engine.Retry.MaxAttempts)
	}
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("engine.max_concurrency", cfg.Engine.MaxConcurrency)
	v.Set("engine.failure_policy", cfg.Engine.FailurePolicy)
	v.Set("engine.retry.max_attempts", cfg.Engine.Retry.MaxAttempts)
	v.Set("engine.retry.backoff", cfg.Engine.Retry.Backoff.String())
	v.Set("planner.model", cfg.Planner.Model)
	v.Set("planner.api_key", cfg.Planner.APIKey)
	v.Set("planner.use_bedrock", cfg.Planner.UseBedrock)
	v.Set("planner.aws_region", cfg.Planner.AWSRegion)
	v.Set("planner.aws_profile", cfg.Planner.AWSProfile)
	v.Set("estimator.cost_table", cfg.Estimator.CostTable)
	v.Set("estimator.watch_table", cfg.Estimator.WatchTable)
	v.Set("state.db_path", cfg.State.DBPath)
	v.Set("state.retention_days", cfg.State.RetentionDays)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_concurrency", 4)
	v.SetDefault("engine.failure_policy", "abort")
	v.SetDefault("engine.retry.max_attempts", 3)
	v.SetDefault("engine.retry.backoff", "500ms")

	v.SetDefault("planner.model", "claude-sonnet-4-20250514")
	v.SetDefault("planner.api_key", "")
	v.SetDefault("planner.use_bedrock", false)

	v.SetDefault("estimator.cost_table", "")
	v.SetDefault("estimator.watch_table", false)

	v.SetDefault("state.db_path", "")
	v.SetDefault("state.retention_days", 30)

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for Foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for foreman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, "foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxConcurrency: 4,
			FailurePolicy:  "abort",
			Retry: RetryConfig{
				MaxAttempts: 3,
				Backoff:     500 * time.Millisecond,
			},
		},
		Planner: PlannerConfig{
			Model: "claude-sonnet-4-20250514",
		},
		State: StateConfig{
			RetentionDays: 30,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
