package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/sentienthealth/roma/internal/config"
	"github.com/sentienthealth/roma/internal/orchestrator"
	"github.com/sentienthealth/roma/internal/reasoning"
)

var rootCmd = &cobra.Command{
	Use:   "roma",
	Short: "Recursive health analysis orchestrator",
	Long: `Roma turns raw weekly health data into a validated, scored and
coached report. A classifier decides whether a request is a single
analysis step or needs decomposition; decomposed plans run their stages
(ingest, metrics, coach, report) in dependency order and an aggregator
merges whatever completed into one report.

Every layer degrades instead of failing: without an API key the pipeline
still produces computed metrics and fixed coaching content.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newCollaborator builds the reasoning backend. With no API key available
// it returns the offline collaborator so every stage runs its fallback.
func newCollaborator(cfg *config.Config, log *slog.Logger) reasoning.Collaborator {
	collab, err := reasoning.NewAnthropic(reasoning.AnthropicConfig{
		APIKey:    cfg.Anthropic.APIKey,
		Model:     anthropicModel(cfg),
		Timeout:   cfg.Reasoning.Timeout,
		MaxTokens: cfg.Reasoning.MaxTokens,
	})
	if err != nil {
		log.Warn("running offline, analysis degrades to computed output", "reason", err)
		return reasoning.Offline()
	}
	return collab
}

// newOrchestrator wires the full pipeline from config.
func newOrchestrator(cfg *config.Config, log *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(newCollaborator(cfg, log), orchestrator.Options{
		MaxDepth:    cfg.Orchestrator.MaxDepth,
		MaxSubtasks: cfg.Orchestrator.MaxSubtasks,
		Parallel:    cfg.Orchestrator.Parallel,
		Log:         log,
	})
}

func anthropicModel(cfg *config.Config) anthropic.Model {
	return anthropic.Model(cfg.Anthropic.Model)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
