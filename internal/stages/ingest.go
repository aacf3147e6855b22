package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// Per-day plausibility bounds for normalization.
const (
	maxDailySteps    = 50000
	maxDailySleep    = 24.0
	maxDailyWorkouts = 21
	maxDailyWater    = 10.0
)

// Ingest validates and normalizes incoming health data. It passes through a
// superset of the input: unknown fields are never discarded. On failure it
// returns the original unmodified data so downstream stages still have
// usable input.
type Ingest struct {
	collab reasoning.Collaborator
	log    *slog.Logger
}

// NewIngest creates the ingest stage.
func NewIngest(collab reasoning.Collaborator, log *slog.Logger) *Ingest {
	return &Ingest{collab: collab, log: log.With("stage", models.StageIngest)}
}

// Kind implements Stage.
func (s *Ingest) Kind() models.StageKind { return models.StageIngest }

const ingestSystemPrompt = `You are a health data validation expert. Analyze health data for completeness, concerning values, consistency and missing critical information. Provide practical validation insight, not medical diagnosis.

Respond with JSON only: {"data_quality": "good/incomplete", "warnings": ["..."]}`

// Execute implements Stage.
func (s *Ingest) Execute(ctx context.Context, state State) models.StageResult {
	original := state.Data

	if original.Empty() {
		return models.StageResult{
			Stage:  models.StageIngest,
			Status: models.StatusError,
			Error:  "no input data",
			Ingestion: &models.IngestionData{
				Normalized:  original,
				DataQuality: "incomplete",
				Warnings:    []string{"no input data supplied"},
			},
		}
	}

	normalized, warnings := normalize(original)

	out := &models.IngestionData{
		Normalized:  normalized,
		DataQuality: quality(normalized),
		DataPoints:  countDataPoints(normalized),
		Warnings:    warnings,
	}
	if normalized.Profile.HasBody() {
		out.BMI = bmi(normalized.Profile)
	}

	aiWarnings, err := s.consult(ctx, out)
	if err != nil {
		// Degraded: surface the original data unmodified per the stage
		// contract, so nothing downstream sees half-normalized input.
		s.log.Warn("ingest degraded", "error", err)
		return models.StageResult{
			Stage:  models.StageIngest,
			Status: models.StatusError,
			Error:  fmt.Sprintf("validation collaborator failed: %v", err),
			Ingestion: &models.IngestionData{
				Normalized:  original,
				BMI:         out.BMI,
				DataQuality: "incomplete",
				DataPoints:  out.DataPoints,
				Warnings:    append(warnings, "AI validation unavailable; data passed through unnormalized"),
			},
		}
	}
	if aiWarnings.DataQuality != "" {
		out.DataQuality = aiWarnings.DataQuality
	}
	out.Warnings = append(out.Warnings, aiWarnings.Warnings...)

	return models.StageResult{
		Stage:     models.StageIngest,
		Status:    models.StatusOK,
		Ingestion: out,
	}
}

type ingestVerdict struct {
	DataQuality string   `json:"data_quality"`
	Warnings    []string `json:"warnings"`
}

func (s *Ingest) consult(ctx context.Context, data *models.IngestionData) (ingestVerdict, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ingestVerdict{}, fmt.Errorf("marshal validation summary: %w", err)
	}

	response, err := s.collab.Complete(ctx, reasoning.Request{
		System: ingestSystemPrompt,
		Prompt: fmt.Sprintf("Validate this health data and flag anything concerning:\n\n%s", payload),
	})
	if err != nil {
		return ingestVerdict{}, err
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return ingestVerdict{}, err
	}
	var v ingestVerdict
	if err := json.Unmarshal([]byte(window), &v); err != nil {
		return ingestVerdict{}, fmt.Errorf("unmarshal validation verdict: %w", err)
	}
	return v, nil
}

// normalize clamps tracked metrics to plausible per-day ranges. Unknown
// fields ride along untouched in Extra.
func normalize(data models.HealthPayload) (models.HealthPayload, []string) {
	out := data.Clone()
	var warnings []string

	for i := range out.DailyLogs {
		l := &out.DailyLogs[i]
		if l.Steps < 0 || l.Steps > maxDailySteps {
			warnings = append(warnings, fmt.Sprintf("daily_logs[%d]: steps %d clamped", i, l.Steps))
			l.Steps = clampInt(l.Steps, 0, maxDailySteps)
		}
		if l.SleepHours < 0 || l.SleepHours > maxDailySleep {
			warnings = append(warnings, fmt.Sprintf("daily_logs[%d]: sleep_hours %.1f clamped", i, l.SleepHours))
			l.SleepHours = clampFloat(l.SleepHours, 0, maxDailySleep)
		}
		if l.Workouts < 0 || l.Workouts > maxDailyWorkouts {
			warnings = append(warnings, fmt.Sprintf("daily_logs[%d]: workouts %d clamped", i, l.Workouts))
			l.Workouts = clampInt(l.Workouts, 0, maxDailyWorkouts)
		}
		if l.WaterLiters < 0 || l.WaterLiters > maxDailyWater {
			warnings = append(warnings, fmt.Sprintf("daily_logs[%d]: water_liters %.1f clamped", i, l.WaterLiters))
			l.WaterLiters = clampFloat(l.WaterLiters, 0, maxDailyWater)
		}
	}

	if data.Profile != (models.Profile{}) && !data.Profile.HasBody() {
		warnings = append(warnings, "profile missing height or weight; BMI unavailable")
	}
	return out, warnings
}

func quality(data models.HealthPayload) string {
	if data.Profile != (models.Profile{}) && len(data.Targets) > 0 && len(data.DailyLogs) > 0 {
		return "good"
	}
	return "incomplete"
}

func countDataPoints(data models.HealthPayload) int {
	n := 0
	for _, l := range data.DailyLogs {
		if l.Steps > 0 {
			n++
		}
		if l.SleepHours > 0 {
			n++
		}
		if l.Workouts > 0 {
			n++
		}
		if l.WaterLiters > 0 {
			n++
		}
		if l.Calories > 0 {
			n++
		}
	}
	return n
}

// bmi computes weight / height^2 with height in meters, rounded to two
// decimals.
func bmi(p models.Profile) float64 {
	h := p.HeightCm / 100
	return math.Round(p.WeightKg/(h*h)*100) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
