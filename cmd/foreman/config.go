package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/workforcehq/foreman/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Foreman configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/foreman/config.yaml
Project-specific overrides can be placed in foreman.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Planner.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("engine.max_concurrency: %d\n", cfg.Engine.MaxConcurrency)
	fmt.Printf("engine.failure_policy: %s\n", cfg.Engine.FailurePolicy)
	fmt.Printf("engine.retry.max_attempts: %d\n", cfg.Engine.Retry.MaxAttempts)
	fmt.Printf("engine.retry.backoff: %s\n", cfg.Engine.Retry.Backoff)
	fmt.Printf("planner.model: %s\n", cfg.Planner.Model)
	fmt.Printf("planner.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("planner.use_bedrock: %t\n", cfg.Planner.UseBedrock)
	fmt.Printf("planner.aws_region: %s\n", cfg.Planner.AWSRegion)
	fmt.Printf("planner.aws_profile: %s\n", cfg.Planner.AWSProfile)
	fmt.Printf("estimator.cost_table: %s\n", cfg.Estimator.CostTable)
	fmt.Printf("estimator.watch_table: %t\n", cfg.Estimator.WatchTable)
	fmt.Printf("state.db_path: %s\n", cfg.State.DBPath)
	fmt.Printf("state.retention_days: %d\n", cfg.State.RetentionDays)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "engine.max_concurrency":
		return strconv.Itoa(cfg.Engine.MaxConcurrency), nil
	case "engine.failure_policy":
		return cfg.Engine.FailurePolicy, nil
	case "engine.retry.max_attempts":
		return strconv.Itoa(cfg.Engine.Retry.MaxAttempts), nil
	case "engine.retry.backoff":
		return cfg.Engine.Retry.Backoff.String(), nil
	case "planner.model":
		return cfg.Planner.Model, nil
	case "planner.api_key":
		if cfg.Planner.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "planner.use_bedrock":
		return strconv.FormatBool(cfg.Planner.UseBedrock), nil
	case "planner.aws_region":
		return cfg.Planner.AWSRegion, nil
	case "planner.aws_profile":
		return cfg.Planner.AWSProfile, nil
	case "estimator.cost_table":
		return cfg.Estimator.CostTable, nil
	case "estimator.watch_table":
		return strconv.FormatBool(cfg.Estimator.WatchTable), nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	case "state.retention_days":
		return strconv.Itoa(cfg.State.RetentionDays), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "engine.max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		cfg.Engine.MaxConcurrency = n
	case "engine.failure_policy":
		if value != "abort" && value != "best_effort" {
			return fmt.Errorf("failure_policy must be \"abort\" or \"best_effort\"")
		}
		cfg.Engine.FailurePolicy = value
	case "engine.retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		cfg.Engine.Retry.MaxAttempts = n
	case "engine.retry.backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Engine.Retry.Backoff = d
	case "planner.model":
		cfg.Planner.Model = value
	case "planner.api_key":
		cfg.Planner.APIKey = value
	case "planner.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Planner.UseBedrock = b
	case "planner.aws_region":
		cfg.Planner.AWSRegion = value
	case "planner.aws_profile":
		cfg.Planner.AWSProfile = value
	case "estimator.cost_table":
		cfg.Estimator.CostTable = value
	case "estimator.watch_table":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Estimator.WatchTable = b
	case "state.db_path":
		cfg.State.DBPath = value
	case "state.retention_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		cfg.State.RetentionDays = n
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
