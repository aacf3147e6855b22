package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// Coach turns accumulated metrics into personalized recommendations. The
// system never returns an empty coaching result: any collaborator failure
// yields the fixed generic recommendation set.
type Coach struct {
	collab reasoning.Collaborator
	log    *slog.Logger
}

// NewCoach creates the coach stage.
func NewCoach(collab reasoning.Collaborator, log *slog.Logger) *Coach {
	return &Coach{collab: collab, log: log.With("stage", models.StageCoach)}
}

// Kind implements Stage.
func (s *Coach) Kind() models.StageKind { return models.StageCoach }

const coachSystemPrompt = `You are an expert health and wellness coach. Provide personalized, actionable advice, weekly focus areas, habit changes and realistic milestones. Be warm, professional and evidence-based. Avoid medical diagnosis.

Respond with JSON only:
{"daily_suggestions": ["..."], "weekly_focus": ["..."], "habit_changes": ["..."], "motivation": "...", "milestones": ["..."]}`

// Execute implements Stage.
func (s *Coach) Execute(ctx context.Context, state State) models.StageResult {
	out, err := s.consult(ctx, state)
	if err != nil {
		s.log.Warn("coaching degraded", "error", err)
		return models.StageResult{
			Stage:    models.StageCoach,
			Status:   models.StatusError,
			Error:    fmt.Sprintf("coaching collaborator failed: %v", err),
			Coaching: FallbackCoaching(),
		}
	}
	fillCoachingGaps(out)
	return models.StageResult{
		Stage:    models.StageCoach,
		Status:   models.StatusOK,
		Coaching: out,
	}
}

func (s *Coach) consult(ctx context.Context, state State) (*models.CoachingData, error) {
	request := state.Data.Message
	if request == "" {
		request = "Weekly health coaching"
	}

	promptCtx := map[string]any{"data": state.Data}
	if state.Metrics != nil {
		promptCtx["metrics"] = state.Metrics
	}
	if state.Ingestion != nil {
		promptCtx["validation"] = state.Ingestion
	}
	payload, err := json.Marshal(promptCtx)
	if err != nil {
		return nil, fmt.Errorf("marshal coaching context: %w", err)
	}

	response, err := s.collab.Complete(ctx, reasoning.Request{
		System: coachSystemPrompt,
		Prompt: fmt.Sprintf("Provide health coaching for this situation:\n\nRequest: %s\nHealth context: %s", request, payload),
	})
	if err != nil {
		return nil, err
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	out := &models.CoachingData{}
	if err := json.Unmarshal([]byte(window), out); err != nil {
		return nil, fmt.Errorf("unmarshal coaching: %w", err)
	}
	if len(out.DailySuggestions) == 0 {
		return nil, fmt.Errorf("collaborator returned no suggestions")
	}
	return out, nil
}

// FallbackCoaching is the fixed generic recommendation set used whenever
// the collaborator cannot supply coaching content.
func FallbackCoaching() *models.CoachingData {
	return &models.CoachingData{
		DailySuggestions: []string{
			"Stay consistent with tracking",
			"Focus on gradual improvements",
			"Celebrate small wins",
		},
		WeeklyFocus:  []string{"Consistency", "Balance"},
		HabitChanges: []string{"Set realistic weekly goals", "Review progress regularly"},
		Motivation:   "Every step towards better health counts. You're building great habits!",
		Milestones:   []string{"Complete a full week of daily logging"},
	}
}

// fillCoachingGaps tops up missing fields from the fallback set so the
// payload schema is always fully populated.
func fillCoachingGaps(c *models.CoachingData) {
	fb := FallbackCoaching()
	if len(c.WeeklyFocus) == 0 {
		c.WeeklyFocus = fb.WeeklyFocus
	}
	if len(c.HabitChanges) == 0 {
		c.HabitChanges = fb.HabitChanges
	}
	if c.Motivation == "" {
		c.Motivation = fb.Motivation
	}
	if len(c.Milestones) == 0 {
		c.Milestones = fb.Milestones
	}
}
