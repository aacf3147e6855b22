package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentienthealth/roma/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify roma configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/roma/config.yaml
Project-specific overrides can be placed in .roma.yaml`,
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
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("reasoning.timeout: %s\n", cfg.Reasoning.Timeout)
	fmt.Printf("reasoning.max_tokens: %d\n", cfg.Reasoning.MaxTokens)
	fmt.Printf("orchestrator.max_depth: %d\n", cfg.Orchestrator.MaxDepth)
	fmt.Printf("orchestrator.max_subtasks: %d\n", cfg.Orchestrator.MaxSubtasks)
	fmt.Printf("orchestrator.parallel: %t\n", cfg.Orchestrator.Parallel)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
	fmt.Printf("server.shutdown_timeout: %s\n", cfg.Server.ShutdownTimeout)
	fmt.Printf("log.level: %s\n", cfg.Log.Level)
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
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "reasoning.timeout":
		return cfg.Reasoning.Timeout.String(), nil
	case "reasoning.max_tokens":
		return strconv.Itoa(cfg.Reasoning.MaxTokens), nil
	case "orchestrator.max_depth":
		return strconv.Itoa(cfg.Orchestrator.MaxDepth), nil
	case "orchestrator.max_subtasks":
		return strconv.Itoa(cfg.Orchestrator.MaxSubtasks), nil
	case "orchestrator.parallel":
		return strconv.FormatBool(cfg.Orchestrator.Parallel), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "server.shutdown_timeout":
		return cfg.Server.ShutdownTimeout.String(), nil
	case "log.level":
		return cfg.Log.Level, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "reasoning.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for reasoning.timeout: %w", err)
		}
		cfg.Reasoning.Timeout = d
	case "reasoning.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Reasoning.MaxTokens = n
	case "orchestrator.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_depth: %w", err)
		}
		cfg.Orchestrator.MaxDepth = n
	case "orchestrator.max_subtasks":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_subtasks: %w", err)
		}
		cfg.Orchestrator.MaxSubtasks = n
	case "orchestrator.parallel":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for parallel: %w", err)
		}
		cfg.Orchestrator.Parallel = b
	case "server.addr":
		cfg.Server.Addr = value
	case "server.shutdown_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for shutdown_timeout: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	case "log.level":
		cfg.Log.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
