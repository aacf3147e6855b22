package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sentienthealth/roma/internal/server"
	"github.com/sentienthealth/roma/pkg/models"
)

var (
	analyzeExample     bool
	analyzeJSON        bool
	analyzeDescription string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run an analysis over a health data file",
	Long: `Run the full analysis pipeline over a JSON health payload.

The payload is read from the given file, or from stdin when no file is
given. Use --example to run against the built-in sample payload instead.

Examples:
  roma analyze week.json
  cat week.json | roma analyze
  roma analyze --example
  roma analyze week.json --json > report.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeExample, "example", false, "Analyze the built-in sample payload")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the raw report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeDescription, "description", "", "Override the analysis task description")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	payload, err := readPayload(args)
	if err != nil {
		return err
	}

	description := analyzeDescription
	if description == "" {
		description = "Generate comprehensive weekly health analysis with validation, metrics, coaching and report"
	}

	log := newLogger(cfg)
	orch := newOrchestrator(cfg, log)

	task := models.Task{
		ID:          uuid.NewString(),
		Description: description,
		Data:        payload,
	}
	report, err := orch.Solve(cmd.Context(), task)
	if err != nil {
		return fmt.Errorf("analysis canceled: %w", err)
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	renderReport(report)
	return nil
}

func readPayload(args []string) (models.HealthPayload, error) {
	if analyzeExample {
		return server.ExamplePayload(), nil
	}

	var raw []byte
	var err error
	if len(args) > 0 {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return models.HealthPayload{}, fmt.Errorf("reading %s: %w", args[0], err)
		}
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return models.HealthPayload{}, fmt.Errorf("reading stdin: %w", err)
		}
	}

	var payload models.HealthPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.HealthPayload{}, fmt.Errorf("parsing payload: %w", err)
	}
	return payload, nil
}

func renderReport(report models.AggregatedReport) {
	header := color.New(color.FgCyan, color.Bold)
	header.Println("Weekly Health Report")
	fmt.Println()

	scoreColor := color.New(color.FgGreen)
	if report.HealthScore < 70 {
		scoreColor = color.New(color.FgYellow)
	}
	if report.HealthScore < 50 {
		scoreColor = color.New(color.FgRed)
	}
	fmt.Printf("Health score: %s   Status: %s\n",
		scoreColor.Sprintf("%.0f/100", report.HealthScore), report.Summary.Status)
	fmt.Printf("Data quality: %s\n", report.ValidatedData.DataQuality)
	for _, w := range report.ValidatedData.Warnings {
		fmt.Printf("  %s %s\n", color.YellowString("⚠"), w)
	}
	fmt.Println()

	if report.Report.ExecutiveSummary != "" {
		fmt.Println(report.Report.ExecutiveSummary)
		fmt.Println()
	}

	if report.HealthMetrics != nil {
		header.Println("Scores")
		printGroup(report.HealthMetrics.Scores, "%.0f")
		if len(report.HealthMetrics.Adherence) > 0 {
			header.Println("Adherence")
			printGroup(report.HealthMetrics.Adherence, "%.0f%%")
		}
		fmt.Println()
	}

	header.Println("Coaching")
	for _, s := range report.Coaching.DailySuggestions {
		fmt.Printf("  %s %s\n", color.GreenString("•"), s)
	}
	if report.Coaching.Motivation != "" {
		fmt.Printf("  %s\n", color.New(color.Italic).Sprint(report.Coaching.Motivation))
	}
	fmt.Println()

	if len(report.Report.NextActions) > 0 {
		header.Println("Next actions")
		for i, a := range report.Report.NextActions {
			fmt.Printf("  %d. %s\n", i+1, a)
		}
		fmt.Println()
	}

	fmt.Printf("Completed in %s", report.Meta.Duration.Round(time.Millisecond))
	if report.Meta.DirectStage != "" {
		fmt.Printf(" (direct %s)", report.Meta.DirectStage)
	}
	fmt.Println()
}

func printGroup(group models.MetricGroup, format string) {
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-14s "+format+"\n", name, group[name])
	}
}
