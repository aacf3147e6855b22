package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/internal/stages"
	"github.com/sentienthealth/roma/pkg/models"
)

// MaxTopRecommendations caps the summary's recommendation list.
const MaxTopRecommendations = 3

// Aggregator merges stage results into one report. The merge itself is
// mechanical and deterministic; the collaborator is consulted only to
// recover an executive summary when the report stage degraded, and even
// that consult is optional.
type Aggregator struct {
	collab reasoning.Collaborator
	log    *slog.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(collab reasoning.Collaborator, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{collab: collab, log: log.With("component", "aggregator")}
}

// Combine merges the accumulated state and per-task results into the final
// report. It cannot fail: missing payloads take their stage fallbacks.
func (a *Aggregator) Combine(ctx context.Context, task models.Task, state stages.State, results map[string]models.StageResult) models.AggregatedReport {
	report := models.AggregatedReport{
		ValidatedData:  validatedData(state),
		HealthMetrics:  state.Metrics,
		AgentExecution: make(map[string]models.ResultStatus, len(results)),
	}
	for id, r := range results {
		report.AgentExecution[id] = r.Status
	}

	if state.Coaching != nil {
		report.Coaching = *state.Coaching
	} else {
		report.Coaching = *stages.FallbackCoaching()
	}
	if state.Report != nil {
		report.Report = *state.Report
	} else {
		report.Report = *stages.FallbackReport(state)
	}

	report.HealthScore = healthScore(state, results)
	report.Report.HealthScore = report.HealthScore

	if degraded(models.StageReport, results) {
		if summary, ok := a.recoverSummary(ctx, task, state); ok {
			report.Report.ExecutiveSummary = summary
		}
	}

	report.Summary = models.ReportSummary{
		HealthScore:        report.HealthScore,
		Status:             overallStatus(results),
		TopRecommendations: truncate(report.Coaching.DailySuggestions, MaxTopRecommendations),
		NextActions:        truncate(report.Report.NextActions, stages.MaxNextActions),
	}
	return report
}

func validatedData(state stages.State) models.ValidatedData {
	if state.Ingestion != nil {
		return models.ValidatedData{
			Normalized:  state.Ingestion.Normalized,
			DataQuality: state.Ingestion.DataQuality,
			Warnings:    state.Ingestion.Warnings,
		}
	}
	return models.ValidatedData{Normalized: state.Data, DataQuality: "incomplete"}
}

// healthScore resolves the single score with fixed precedence: a healthy
// report stage wins, then the computed metrics overall, then the neutral
// score.
func healthScore(state stages.State, results map[string]models.StageResult) float64 {
	if state.Report != nil && !degraded(models.StageReport, results) && state.Report.HealthScore > 0 {
		return state.Report.HealthScore
	}
	if state.Metrics != nil {
		if overall, ok := state.Metrics.Scores["overall"]; ok && overall > 0 {
			return overall
		}
	}
	if state.Report != nil && state.Report.HealthScore > 0 {
		return state.Report.HealthScore
	}
	return NeutralScore()
}

// NeutralScore is the score reported when nothing computed one.
func NeutralScore() float64 { return stages.FallbackReport(stages.State{}).HealthScore }

// degraded reports whether any run of the named stage finished in error.
// Plans may address the same stage from several tasks, so the verdict must
// not depend on map iteration order. A stage that never ran is not
// degraded; its absence shows in the payload.
func degraded(kind models.StageKind, results map[string]models.StageResult) bool {
	for _, r := range results {
		if r.Stage == kind && r.Status == models.StatusError {
			return true
		}
	}
	return false
}

func overallStatus(results map[string]models.StageResult) string {
	for _, r := range results {
		if r.Status != models.StatusOK {
			return "degraded"
		}
	}
	return "complete"
}

func truncate(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}

const summarySystemPrompt = `You are a health report writer. Given partial
analysis results as JSON, write a two to three sentence executive summary of
the week in plain language. Respond with JSON only:
{"executive_summary": "..."}`

// recoverSummary asks the collaborator for a narrative summary of whatever
// did complete. The merge never depends on this consult succeeding: on any
// failure the caller keeps the report stage's fixed summary line.
func (a *Aggregator) recoverSummary(ctx context.Context, task models.Task, state stages.State) (string, bool) {
	if a.collab == nil {
		return "", false
	}
	partial := map[string]any{
		"request": task.Description,
		"metrics": state.Metrics,
		"coaching": func() any {
			if state.Coaching != nil {
				return truncate(state.Coaching.WeeklyFocus, MaxTopRecommendations)
			}
			return nil
		}(),
	}
	blob, err := json.Marshal(partial)
	if err != nil {
		return "", false
	}

	resp, err := a.collab.Complete(ctx, reasoning.Request{
		System: summarySystemPrompt,
		Prompt: fmt.Sprintf("Partial results:\n%s", blob),
	})
	if err != nil {
		a.log.Warn("summary recovery failed", "error", err)
		return "", false
	}
	raw, err := reasoning.ExtractJSON(resp)
	if err != nil {
		return "", false
	}
	var out struct {
		ExecutiveSummary string `json:"executive_summary"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || strings.TrimSpace(out.ExecutiveSummary) == "" {
		return "", false
	}
	return strings.TrimSpace(out.ExecutiveSummary), true
}
