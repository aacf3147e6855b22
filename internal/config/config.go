// Package config handles configuration loading for roma.
// It supports XDG config paths, project-level overrides, and environment
// variables. Configuration is read once at process start and treated as
// immutable for the process lifetime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for roma.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Reasoning    ReasoningConfig    `mapstructure:"reasoning"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ReasoningConfig bounds each call to the reasoning collaborator.
type ReasoningConfig struct {
	// Timeout is the caller-imposed limit on a single collaborator call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxTokens caps the collaborator's response size.
	MaxTokens int `mapstructure:"max_tokens"`
}

// OrchestratorConfig holds safety limits and scheduling toggles.
type OrchestratorConfig struct {
	// MaxDepth bounds the solve recursion.
	MaxDepth int `mapstructure:"max_depth"`
	// MaxSubtasks caps the number of tasks accepted in one plan.
	MaxSubtasks int `mapstructure:"max_subtasks"`
	// Parallel runs independent plan tasks concurrently when true.
	// Sequential topological execution is always valid.
	Parallel bool `mapstructure:"parallel"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `mapstructure:"level"`
}

// Load loads configuration with the following precedence (highest first):
// 1. Environment variables (ANTHROPIC_API_KEY, ROMA_*)
// 2. Project config (.roma.yaml in the current directory or a parent)
// 3. User config (~/.config/roma/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		pv := viper.New()
		pv.SetConfigFile(projectConfig)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("ROMA")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "ROMA_MODEL")
	v.BindEnv("server.addr", "ROMA_ADDR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	dir := userConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("reasoning.timeout", cfg.Reasoning.Timeout.String())
	v.Set("reasoning.max_tokens", cfg.Reasoning.MaxTokens)
	v.Set("orchestrator.max_depth", cfg.Orchestrator.MaxDepth)
	v.Set("orchestrator.max_subtasks", cfg.Orchestrator.MaxSubtasks)
	v.Set("orchestrator.parallel", cfg.Orchestrator.Parallel)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.shutdown_timeout", cfg.Server.ShutdownTimeout.String())
	v.Set("log.level", cfg.Log.Level)

	return v.WriteConfig()
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("reasoning.timeout", "30s")
	v.SetDefault("reasoning.max_tokens", 2048)

	v.SetDefault("orchestrator.max_depth", 3)
	v.SetDefault("orchestrator.max_subtasks", 6)
	v.SetDefault("orchestrator.parallel", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("log.level", "info")
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "roma")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "roma")
	}
	return filepath.Join(home, ".config", "roma")
}

// findProjectConfig searches for .roma.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(cwd, ".roma.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		Reasoning: ReasoningConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 2048,
		},
		Orchestrator: OrchestratorConfig{
			MaxDepth:    3,
			MaxSubtasks: 6,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}
