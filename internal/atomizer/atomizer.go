// Package atomizer decides whether a task is directly executable by a
// single stage or requires full decomposition.
package atomizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// Classification is the classifier's verdict on one task.
type Classification struct {
	// Atomic is true when a single stage can handle the task directly.
	Atomic bool `json:"is_atomic"`
	// Reasoning explains the verdict.
	Reasoning string `json:"reasoning"`
	// SuggestedStage names the stage for atomic tasks; may be empty.
	SuggestedStage models.StageKind `json:"suggested_stage,omitempty"`
}

// Atomizer classifies tasks. Classify is a total function: a malformed or
// ambiguous task, or any collaborator failure, yields a conservative
// non-atomic verdict rather than an error.
type Atomizer struct {
	collab reasoning.Collaborator
	policy *Policy
	log    *slog.Logger
}

// New creates an Atomizer. A nil policy selects the embedded default table.
func New(collab reasoning.Collaborator, policy *Policy, log *slog.Logger) *Atomizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Atomizer{
		collab: collab,
		policy: policy,
		log:    log.With("component", "atomizer"),
	}
}

const classifySystemPrompt = `You are the complexity classifier in a hierarchical health analysis system.

Determine if a task is ATOMIC (one specialized stage) or COMPLEX (needs decomposition).

ATOMIC tasks: simple data validation, basic metric calculation, single-domain analysis, direct coaching questions.
COMPLEX tasks: multi-domain health analysis, cross-metric correlations, comprehensive reporting, multi-step reasoning.

Stages: ingest, metrics, coach, report.

Respond with JSON only: {"is_atomic": boolean, "reasoning": "explanation", "suggested_stage": "stage or empty"}`

// Classify inspects a task and decides whether it is atomic.
func (a *Atomizer) Classify(ctx context.Context, task models.Task) Classification {
	// Known stage kinds are atomic by construction; no collaborator call.
	if task.Kind.Valid() {
		return Classification{
			Atomic:         true,
			Reasoning:      fmt.Sprintf("task targets known stage %q", task.Kind),
			SuggestedStage: task.Kind,
		}
	}

	if a.policy.AtomicHint(task.Description) {
		stage, _ := a.policy.Route(task.Description)
		return Classification{
			Atomic:         true,
			Reasoning:      "description carries an atomic phrasing hint",
			SuggestedStage: stage,
		}
	}

	c, err := a.consult(ctx, task)
	if err != nil {
		// Conservative default: prefer decomposition, never fail the
		// pipeline.
		a.log.Warn("classifier degraded", "error", err)
		return Classification{
			Atomic:    false,
			Reasoning: fmt.Sprintf("classifier degraded (%v); defaulting to decomposition", err),
		}
	}
	return c
}

// RouteStage resolves the stage for direct execution when the verdict did
// not suggest one.
func (a *Atomizer) RouteStage(description string) models.StageKind {
	stage, _ := a.policy.Route(description)
	return stage
}

func (a *Atomizer) consult(ctx context.Context, task models.Task) (Classification, error) {
	dataKeys := payloadKeys(task.Data)
	prompt := fmt.Sprintf(`Analyze this health task for atomicity:

Task: %s
Data fields present: %s

Is this atomic (single stage) or complex (needs decomposition)?`,
		task.Description, dataKeys)

	response, err := a.collab.Complete(ctx, reasoning.Request{
		System: classifySystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("collaborator: %w", err)
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return Classification{}, fmt.Errorf("classifier response: %w", err)
	}

	var c Classification
	if err := json.Unmarshal([]byte(window), &c); err != nil {
		return Classification{}, fmt.Errorf("unmarshal classification: %w", err)
	}
	if c.SuggestedStage != "" && !c.SuggestedStage.Valid() {
		return Classification{}, fmt.Errorf("classification names unknown stage %q", c.SuggestedStage)
	}
	if c.Reasoning == "" {
		c.Reasoning = "no reasoning provided"
	}
	return c, nil
}

func payloadKeys(data models.HealthPayload) string {
	keys := ""
	add := func(k string) {
		if keys != "" {
			keys += ", "
		}
		keys += k
	}
	if data.Profile != (models.Profile{}) {
		add("profile")
	}
	if len(data.Targets) > 0 {
		add("targets")
	}
	if len(data.DailyLogs) > 0 {
		add(fmt.Sprintf("daily_logs(%d)", len(data.DailyLogs)))
	}
	if data.Message != "" {
		add("message")
	}
	for k := range data.Extra {
		add(k)
	}
	if keys == "" {
		return "none"
	}
	return keys
}
