package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/internal/stages"
	"github.com/sentienthealth/roma/pkg/models"
)

func newTestAggregator(collab reasoning.Collaborator) *Aggregator {
	return NewAggregator(collab, slog.New(slog.DiscardHandler))
}

func TestCombine_EmptyStateFallsBackEverywhere(t *testing.T) {
	a := newTestAggregator(reasoning.Offline())

	report := a.Combine(context.Background(), models.Task{ID: "t"}, stages.State{}, nil)

	if report.HealthScore != NeutralScore() {
		t.Errorf("health score = %v, want neutral %v", report.HealthScore, NeutralScore())
	}
	if len(report.Coaching.DailySuggestions) == 0 {
		t.Error("coaching should fall back to the fixed set")
	}
	if report.Report.ExecutiveSummary == "" {
		t.Error("report should fall back to the fixed degraded report")
	}
	if report.ValidatedData.DataQuality != "incomplete" {
		t.Errorf("data quality = %q, want incomplete without ingestion", report.ValidatedData.DataQuality)
	}
}

func TestCombine_ScorePrecedence(t *testing.T) {
	reportPayload := &models.ReportData{ExecutiveSummary: "s", HealthScore: 88}
	metricsPayload := &models.MetricsData{Scores: models.MetricGroup{"overall": 73}}

	tests := []struct {
		name    string
		state   stages.State
		results map[string]models.StageResult
		want    float64
	}{
		{
			name:  "healthy report wins",
			state: stages.State{Report: reportPayload, Metrics: metricsPayload},
			results: map[string]models.StageResult{
				"r": {Stage: models.StageReport, Status: models.StatusOK},
			},
			want: 88,
		},
		{
			name:  "degraded report yields to computed overall",
			state: stages.State{Report: reportPayload, Metrics: metricsPayload},
			results: map[string]models.StageResult{
				"r": {Stage: models.StageReport, Status: models.StatusError},
			},
			want: 73,
		},
		{
			name:  "metrics only",
			state: stages.State{Metrics: metricsPayload},
			want:  73,
		},
		{
			name: "nothing computed",
			want: NeutralScore(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(reasoning.Offline())
			report := a.Combine(context.Background(), models.Task{ID: "t"}, tt.state, tt.results)
			if report.HealthScore != tt.want {
				t.Errorf("health score = %v, want %v", report.HealthScore, tt.want)
			}
			if report.Report.HealthScore != tt.want {
				t.Errorf("embedded report score = %v, want the resolved %v",
					report.Report.HealthScore, tt.want)
			}
		})
	}
}

func TestCombine_DuplicateStageKindDegradesDeterministically(t *testing.T) {
	// Plans only require unique IDs, so two tasks may address the same
	// stage. One erroring run must mark the stage degraded regardless of
	// map iteration order.
	a := newTestAggregator(reasoning.Offline())

	state := stages.State{
		Report:  &models.ReportData{ExecutiveSummary: "s", HealthScore: 88},
		Metrics: &models.MetricsData{Scores: models.MetricGroup{"overall": 73}},
	}
	results := map[string]models.StageResult{
		"first-report":  {Stage: models.StageReport, Status: models.StatusOK},
		"retry-report":  {Stage: models.StageReport, Status: models.StatusError},
		"metrics-sweep": {Stage: models.StageMetrics, Status: models.StatusOK},
	}

	for i := 0; i < 20; i++ {
		report := a.Combine(context.Background(), models.Task{ID: "t"}, state, results)
		if report.HealthScore != 73 {
			t.Fatalf("health score = %v, want computed overall 73 while any report run errored", report.HealthScore)
		}
		if report.Summary.Status != "degraded" {
			t.Fatalf("status = %q, want degraded", report.Summary.Status)
		}
	}
}

func TestCombine_OverallStatus(t *testing.T) {
	a := newTestAggregator(reasoning.Offline())

	allOK := map[string]models.StageResult{
		"a": {Stage: models.StageIngest, Status: models.StatusOK},
		"b": {Stage: models.StageMetrics, Status: models.StatusOK},
	}
	report := a.Combine(context.Background(), models.Task{}, stages.State{}, allOK)
	if report.Summary.Status != "complete" {
		t.Errorf("status = %q, want complete", report.Summary.Status)
	}

	oneBad := map[string]models.StageResult{
		"a": {Stage: models.StageIngest, Status: models.StatusOK},
		"b": {Stage: models.StageMetrics, Status: models.StatusError},
	}
	report = a.Combine(context.Background(), models.Task{}, stages.State{}, oneBad)
	if report.Summary.Status != "degraded" {
		t.Errorf("status = %q, want degraded", report.Summary.Status)
	}
	if report.AgentExecution["b"] != models.StatusError {
		t.Errorf("agent execution = %v, want per-task statuses preserved", report.AgentExecution)
	}
}

func TestCombine_SummaryRecovery(t *testing.T) {
	degradedReport := map[string]models.StageResult{
		"r": {Stage: models.StageReport, Status: models.StatusError},
	}
	state := stages.State{Report: stages.FallbackReport(stages.State{})}

	t.Run("collaborator supplies narrative", func(t *testing.T) {
		stub := (&reasoning.Stub{}).Respond("report writer",
			`{"executive_summary": "A recovered narrative of the week."}`)
		a := newTestAggregator(stub)

		report := a.Combine(context.Background(), models.Task{}, state, degradedReport)
		if report.Report.ExecutiveSummary != "A recovered narrative of the week." {
			t.Errorf("summary = %q, want recovered narrative", report.Report.ExecutiveSummary)
		}
	})

	t.Run("recovery failure keeps fixed line", func(t *testing.T) {
		a := newTestAggregator(&reasoning.Stub{Err: errors.New("api down")})

		report := a.Combine(context.Background(), models.Task{}, state, degradedReport)
		if report.Report.ExecutiveSummary != stages.FallbackReport(stages.State{}).ExecutiveSummary {
			t.Errorf("summary = %q, want the fixed fallback line", report.Report.ExecutiveSummary)
		}
	})

	t.Run("healthy report skips recovery", func(t *testing.T) {
		stub := &reasoning.Stub{Err: errors.New("must not be called")}
		a := newTestAggregator(stub)

		okResults := map[string]models.StageResult{
			"r": {Stage: models.StageReport, Status: models.StatusOK},
		}
		a.Combine(context.Background(), models.Task{},
			stages.State{Report: &models.ReportData{ExecutiveSummary: "fine", HealthScore: 80}}, okResults)
		if len(stub.Calls) != 0 {
			t.Errorf("collaborator consulted %d times for a healthy report, want 0", len(stub.Calls))
		}
	})
}

func TestCombine_TruncatesSummaryLists(t *testing.T) {
	a := newTestAggregator(reasoning.Offline())

	state := stages.State{
		Coaching: &models.CoachingData{
			DailySuggestions: []string{"a", "b", "c", "d", "e"},
			WeeklyFocus:      []string{"w"},
			HabitChanges:     []string{"h"},
			Motivation:       "m",
			Milestones:       []string{"ms"},
		},
		Report: &models.ReportData{
			ExecutiveSummary: "s",
			HealthScore:      75,
			NextActions:      []string{"1", "2", "3"},
		},
	}
	results := map[string]models.StageResult{
		"r": {Stage: models.StageReport, Status: models.StatusOK},
	}

	report := a.Combine(context.Background(), models.Task{}, state, results)

	if len(report.Summary.TopRecommendations) != MaxTopRecommendations {
		t.Errorf("top recommendations = %v, want %d entries",
			report.Summary.TopRecommendations, MaxTopRecommendations)
	}
	if len(report.Summary.NextActions) != 3 {
		t.Errorf("next actions = %v, want 3 entries", report.Summary.NextActions)
	}
}
