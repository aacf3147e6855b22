package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// NeutralHealthScore is the fixed score used when reporting degrades.
const NeutralHealthScore = 70

// MaxNextActions caps the report's immediate action list.
const MaxNextActions = 3

// Report synthesizes ingestion, metrics and coaching into an executive
// report. On failure it returns a degraded but structurally valid report
// with a fixed neutral score.
type Report struct {
	collab reasoning.Collaborator
	log    *slog.Logger
}

// NewReport creates the report stage.
func NewReport(collab reasoning.Collaborator, log *slog.Logger) *Report {
	return &Report{collab: collab, log: log.With("stage", models.StageReport)}
}

// Kind implements Stage.
func (s *Report) Kind() models.StageKind { return models.StageReport }

const reportSystemPrompt = `You are a health report specialist. Synthesize validated data, computed metrics and coaching into a clear report: an executive summary, a 0-100 health score, key insights, a weekly plan and up to 3 next actions. Professional yet accessible.

Respond with JSON only:
{"executive_summary": "...", "health_score": 0-100, "insights": ["..."], "weekly_plan": {"primary_goals": ["..."], "daily_actions": ["..."], "success_metrics": ["..."]}, "next_actions": ["..."]}`

// Execute implements Stage.
func (s *Report) Execute(ctx context.Context, state State) models.StageResult {
	out, err := s.consult(ctx, state)
	if err != nil {
		s.log.Warn("reporting degraded", "error", err)
		return models.StageResult{
			Stage:  models.StageReport,
			Status: models.StatusError,
			Error:  fmt.Sprintf("report collaborator failed: %v", err),
			Report: FallbackReport(state),
		}
	}

	out.HealthScore = clampFloat(out.HealthScore, 0, 100)
	if len(out.NextActions) > MaxNextActions {
		out.NextActions = out.NextActions[:MaxNextActions]
	}
	return models.StageResult{
		Stage:  models.StageReport,
		Status: models.StatusOK,
		Report: out,
	}
}

func (s *Report) consult(ctx context.Context, state State) (*models.ReportData, error) {
	promptCtx := map[string]any{"data": state.Data}
	if state.Ingestion != nil {
		promptCtx["validation"] = state.Ingestion
	}
	if state.Metrics != nil {
		promptCtx["metrics"] = state.Metrics
	}
	if state.Coaching != nil {
		promptCtx["coaching"] = state.Coaching
	}
	payload, err := json.Marshal(promptCtx)
	if err != nil {
		return nil, fmt.Errorf("marshal report context: %w", err)
	}

	response, err := s.collab.Complete(ctx, reasoning.Request{
		System: reportSystemPrompt,
		Prompt: fmt.Sprintf("Create a comprehensive weekly health report from:\n\n%s", payload),
	})
	if err != nil {
		return nil, err
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	out := &models.ReportData{}
	if err := json.Unmarshal([]byte(window), out); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	if out.ExecutiveSummary == "" {
		return nil, fmt.Errorf("collaborator returned no summary")
	}
	return out, nil
}

// FallbackReport builds the degraded report. The score prefers the computed
// overall metric when metrics completed, else the fixed neutral constant.
func FallbackReport(state State) *models.ReportData {
	score := float64(NeutralHealthScore)
	if state.Metrics != nil {
		if overall, ok := state.Metrics.Scores["overall"]; ok && overall > 0 {
			score = overall
		}
	}
	return &models.ReportData{
		ExecutiveSummary: "Health data tracked for the week with areas for continued focus.",
		HealthScore:      clampFloat(score, 0, 100),
		Insights: []string{
			"Consistent data tracking maintained",
			"Baseline established for future comparison",
		},
		WeeklyPlan: models.WeeklyPlan{
			PrimaryGoals:   []string{"Continue tracking", "Improve consistency"},
			DailyActions:   []string{"Log health metrics", "Stay hydrated", "Get adequate sleep"},
			SuccessMetrics: []string{"Daily logging", "Target achievement"},
		},
		NextActions: []string{
			"Log health metrics daily",
			"Review weekly targets",
			"Schedule workouts in advance",
		},
	}
}
