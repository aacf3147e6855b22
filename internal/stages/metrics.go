package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// Metrics computes descriptive statistics and derived indicators from the
// accumulated state. All arithmetic is local and deterministic; the
// collaborator only proposes next-week targets. On internal failure it
// returns empty metric groups rather than raising.
type Metrics struct {
	collab reasoning.Collaborator
	log    *slog.Logger
}

// NewMetrics creates the metrics stage.
func NewMetrics(collab reasoning.Collaborator, log *slog.Logger) *Metrics {
	return &Metrics{collab: collab, log: log.With("stage", models.StageMetrics)}
}

// Kind implements Stage.
func (s *Metrics) Kind() models.StageKind { return models.StageMetrics }

const metricsSystemPrompt = `You are a health metrics analyst. Given computed weekly metrics, propose realistic targets for next week. Focus on objective analysis, avoid medical advice.

Respond with JSON only: {"next_targets": {"metric_name": number}}`

// Execute implements Stage.
func (s *Metrics) Execute(ctx context.Context, state State) models.StageResult {
	data := state.Data
	if state.Ingestion != nil && state.Ingestion.Normalized.Empty() == false {
		data = state.Ingestion.Normalized
	}

	if len(data.DailyLogs) == 0 && data.Targets == nil && !data.Profile.HasBody() {
		// Nothing computable; empty groups, not an abort.
		return models.StageResult{
			Stage:  models.StageMetrics,
			Status: models.StatusError,
			Error:  "no data to compute metrics from",
			Metrics: &models.MetricsData{
				Averages:  models.MetricGroup{},
				Totals:    models.MetricGroup{},
				Adherence: models.MetricGroup{},
				Scores:    models.MetricGroup{},
			},
		}
	}

	out := compute(data)

	next, err := s.consult(ctx, out)
	if err != nil {
		s.log.Warn("metrics degraded", "error", err)
		out.NextTargets = fallbackTargets(out)
		return models.StageResult{
			Stage:   models.StageMetrics,
			Status:  models.StatusError,
			Error:   fmt.Sprintf("target collaborator failed: %v", err),
			Metrics: out,
		}
	}
	out.NextTargets = next

	return models.StageResult{
		Stage:   models.StageMetrics,
		Status:  models.StatusOK,
		Metrics: out,
	}
}

// compute builds the full metrics payload from normalized data.
func compute(data models.HealthPayload) *models.MetricsData {
	out := &models.MetricsData{
		Averages:  models.MetricGroup{},
		Totals:    models.MetricGroup{},
		Adherence: models.MetricGroup{},
		Scores:    models.MetricGroup{},
	}

	days := float64(len(data.DailyLogs))
	for _, l := range data.DailyLogs {
		out.Totals["steps"] += float64(l.Steps)
		out.Totals["sleep_hours"] += l.SleepHours
		out.Totals["workouts"] += float64(l.Workouts)
		out.Totals["water_liters"] += l.WaterLiters
		out.Totals["calories"] += l.Calories
	}
	if days > 0 {
		for k, v := range out.Totals {
			out.Averages[k] = round1(v / days)
		}
	}

	// Adherence percentage per target, clamped to [0,100] even when the
	// actual exceeds the target.
	for metric, target := range data.Targets {
		if target <= 0 {
			continue
		}
		actual := out.Totals[metric]
		out.Adherence[metric] = round1(clampFloat(actual/target*100, 0, 100))
	}

	out.Scores["activity"] = activityScore(out.Averages["steps"], out.Totals["workouts"])
	out.Scores["sleep"] = sleepScore(out.Averages["sleep_hours"])
	out.Scores["hydration"] = hydrationScore(out.Averages["water_liters"])
	out.Scores["overall"] = round1((out.Scores["activity"] + out.Scores["sleep"] + out.Scores["hydration"]) / 3)

	if data.Profile.HasBody() {
		out.BMI = bmi(data.Profile)
		if data.Profile.AgeYears > 0 {
			out.BMR = mifflinStJeor(data.Profile)
			out.TDEE = math.Round(out.BMR * data.Profile.ActivityFactor())
		}
	}
	return out
}

// mifflinStJeor computes basal metabolic rate:
// 10*kg + 6.25*cm - 5*age, +5 for males, -161 for females.
func mifflinStJeor(p models.Profile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.AgeYears)
	if strings.EqualFold(p.Sex, "male") || strings.EqualFold(p.Sex, "m") {
		return math.Round(base + 5)
	}
	return math.Round(base - 161)
}

// scale scores a value against a target with a small above-target bonus,
// capped at 100.
func scale(value, target, maxValue float64) float64 {
	if target <= 0 || maxValue <= 0 {
		return 0
	}
	score := math.Min(value/target, 1.0) * 100
	if value > target {
		bonus := math.Min((value-target)/maxValue, 0.1) * 100
		score = math.Min(100, score+bonus)
	}
	return round1(score)
}

// activityScore weighs daily steps against a 10k target and weekly workouts
// against a 3-session target.
func activityScore(avgSteps, weeklyWorkouts float64) float64 {
	return round1(0.7*scale(avgSteps, 10000, 30000) + 0.3*scale(weeklyWorkouts, 3, 10))
}

// sleepScore penalizes distance from the 7.5h ideal.
func sleepScore(avgSleep float64) float64 {
	const ideal, maxDev = 7.5, 4.5
	deviation := math.Min(math.Abs(avgSleep-ideal), maxDev)
	return round1(clampFloat((1-deviation/maxDev)*100, 0, 100))
}

// hydrationScore targets 2.5L/day with a bonus up to 3.5L.
func hydrationScore(avgWater float64) float64 {
	return scale(avgWater, 2.5, 3.5)
}

func fallbackTargets(m *models.MetricsData) models.MetricGroup {
	return models.MetricGroup{
		"overall_score": clampFloat(m.Scores["overall"]+5, 0, 100),
	}
}

type metricsVerdict struct {
	NextTargets models.MetricGroup `json:"next_targets"`
}

func (s *Metrics) consult(ctx context.Context, m *models.MetricsData) (models.MetricGroup, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	response, err := s.collab.Complete(ctx, reasoning.Request{
		System: metricsSystemPrompt,
		Prompt: fmt.Sprintf("Analyze these weekly health metrics and propose next-week targets:\n\n%s", payload),
	})
	if err != nil {
		return nil, err
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var v metricsVerdict
	if err := json.Unmarshal([]byte(window), &v); err != nil {
		return nil, fmt.Errorf("unmarshal target verdict: %w", err)
	}
	if len(v.NextTargets) == 0 {
		return nil, fmt.Errorf("collaborator returned no targets")
	}
	return v.NextTargets, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
