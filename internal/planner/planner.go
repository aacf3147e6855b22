// Package planner decomposes non-atomic tasks into ordered, dependency
// annotated plans.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// Planner produces a Plan for one non-atomic task. It declares the
// dependency graph; scheduling is the orchestrator's job.
type Planner struct {
	collab      reasoning.Collaborator
	maxSubtasks int
	log         *slog.Logger
}

// New creates a Planner. maxSubtasks caps accepted plan sizes; zero or
// negative selects the default of 6.
func New(collab reasoning.Collaborator, maxSubtasks int, log *slog.Logger) *Planner {
	if maxSubtasks <= 0 {
		maxSubtasks = 6
	}
	if log == nil {
		log = slog.Default()
	}
	return &Planner{
		collab:      collab,
		maxSubtasks: maxSubtasks,
		log:         log.With("component", "planner"),
	}
}

const planSystemPrompt = `You are the planner in a hierarchical health analysis system.

Break complex health tasks into executable subtasks with proper dependencies.

Available stages:
- ingest: validates and normalizes health data
- metrics: computes health metrics and adherence
- coach: provides personalized recommendations
- report: creates comprehensive reports

Respond with JSON only:
{"subtasks": [{"id": "unique_id", "kind": "stage", "description": "what to do", "depends_on": ["task_ids"], "priority": 1-5}], "reasoning": "explanation"}`

// plannedTask is the JSON structure returned by the collaborator for a
// single subtask.
type plannedTask struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
	Priority    int      `json:"priority"`
}

type planResponse struct {
	Subtasks  []plannedTask `json:"subtasks"`
	Reasoning string        `json:"reasoning"`
}

// Plan decomposes a task. completed names task IDs already resolved in the
// parent frame; plan dependencies may reference them. Plan never fails: an
// unusable collaborator response, including a cyclic or self-referential
// dependency graph, is discarded and replaced by the fixed default plan,
// since an unschedulable plan would deadlock the orchestrator.
func (p *Planner) Plan(ctx context.Context, task models.Task, completed map[string]bool) models.Plan {
	plan, err := p.consult(ctx, task)
	if err == nil {
		err = Validate(plan, completed, p.maxSubtasks)
	}
	if err != nil {
		p.log.Warn("planner degraded, substituting default plan", "error", err)
		return DefaultPlan(task)
	}
	p.log.Debug("plan accepted", "tasks", len(plan.Tasks))
	return plan
}

func (p *Planner) consult(ctx context.Context, task models.Task) (models.Plan, error) {
	data, err := json.Marshal(task.Data)
	if err != nil {
		return models.Plan{}, fmt.Errorf("marshal task data: %w", err)
	}

	prompt := fmt.Sprintf(`Create an execution plan for this complex health analysis:

Task: %s
Data: %s

Break this into subtasks that specialized stages can handle.
Consider dependencies - data before metrics, metrics before coaching.`,
		task.Description, data)

	response, err := p.collab.Complete(ctx, reasoning.Request{
		System: planSystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return models.Plan{}, fmt.Errorf("collaborator: %w", err)
	}

	window, err := reasoning.ExtractJSON(response)
	if err != nil {
		return models.Plan{}, fmt.Errorf("planner response: %w", err)
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(window), &parsed); err != nil {
		return models.Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(parsed.Subtasks) == 0 {
		return models.Plan{}, fmt.Errorf("empty subtask list returned")
	}

	plan := models.Plan{Reasoning: parsed.Reasoning}
	for _, st := range parsed.Subtasks {
		id := st.ID
		if id == "" {
			id = uuid.New().String()
		}
		priority := st.Priority
		if priority == 0 {
			priority = models.DefaultPriority
		}
		plan.Tasks = append(plan.Tasks, models.Task{
			ID:          id,
			Kind:        models.StageKind(st.Kind),
			Description: st.Description,
			Priority:    priority,
			DependsOn:   append([]string(nil), st.DependsOn...),
			Data:        task.Data.Clone(),
		})
	}
	return plan, nil
}
