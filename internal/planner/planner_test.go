package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

func planTask() models.Task {
	return models.Task{
		ID:          "root",
		Description: "Full weekly health analysis",
		Data: models.HealthPayload{
			Targets: map[string]float64{"steps": 70000},
		},
	}
}

func TestPlan_AcceptsValidResponse(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("planner", `{
		"subtasks": [
			{"id": "validate", "kind": "ingest", "description": "Validate data", "priority": 1},
			{"id": "compute", "kind": "metrics", "description": "Compute metrics", "depends_on": ["validate"], "priority": 2}
		],
		"reasoning": "two step analysis"
	}`)
	p := New(stub, 6, nil)

	plan := p.Plan(context.Background(), planTask(), nil)

	if len(plan.Tasks) != 2 {
		t.Fatalf("plan has %d tasks, want 2", len(plan.Tasks))
	}
	if plan.Tasks[0].ID != "validate" || plan.Tasks[0].Kind != models.StageIngest {
		t.Errorf("first task = %+v, want ingest validate", plan.Tasks[0])
	}
	if plan.Reasoning != "two step analysis" {
		t.Errorf("reasoning = %q, want collaborator reasoning", plan.Reasoning)
	}
	if len(plan.Tasks[1].Data.Targets) == 0 {
		t.Error("subtasks should carry the parent payload")
	}
}

func TestPlan_FillsMissingIDAndPriority(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("planner", `{
		"subtasks": [{"kind": "metrics", "description": "Compute metrics"}]
	}`)
	p := New(stub, 6, nil)

	plan := p.Plan(context.Background(), planTask(), nil)

	if len(plan.Tasks) != 1 {
		t.Fatalf("plan has %d tasks, want 1", len(plan.Tasks))
	}
	if plan.Tasks[0].ID == "" {
		t.Error("missing id should be generated")
	}
	if plan.Tasks[0].Priority != models.DefaultPriority {
		t.Errorf("priority = %d, want default %d", plan.Tasks[0].Priority, models.DefaultPriority)
	}
}

func TestPlan_SubstitutesDefaultPlan(t *testing.T) {
	tests := []struct {
		name string
		stub *reasoning.Stub
	}{
		{"collaborator error", &reasoning.Stub{Err: errors.New("api down")}},
		{"no json", &reasoning.Stub{Fallback: "cannot plan this"}},
		{"empty subtask list", &reasoning.Stub{Fallback: `{"subtasks": []}`}},
		{"unknown stage kind", &reasoning.Stub{Fallback: `{"subtasks": [{"id": "x", "kind": "psychic", "description": "guess"}]}`}},
		{
			"cyclic dependencies",
			&reasoning.Stub{Fallback: `{"subtasks": [
				{"id": "a", "kind": "ingest", "description": "first", "depends_on": ["b"]},
				{"id": "b", "kind": "metrics", "description": "second", "depends_on": ["a"]}
			]}`},
		},
		{
			"over subtask cap",
			&reasoning.Stub{Fallback: `{"subtasks": [
				{"id": "t1", "kind": "ingest", "description": "1"},
				{"id": "t2", "kind": "ingest", "description": "2"},
				{"id": "t3", "kind": "ingest", "description": "3"},
				{"id": "t4", "kind": "ingest", "description": "4"},
				{"id": "t5", "kind": "ingest", "description": "5"},
				{"id": "t6", "kind": "ingest", "description": "6"},
				{"id": "t7", "kind": "ingest", "description": "7"}
			]}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.stub, 6, nil)
			task := planTask()

			plan := p.Plan(context.Background(), task, nil)

			if len(plan.Tasks) != 4 {
				t.Fatalf("degraded plan has %d tasks, want the 4-stage default", len(plan.Tasks))
			}
			if plan.Tasks[0].ID != TaskDataValidation {
				t.Errorf("first task = %q, want %q", plan.Tasks[0].ID, TaskDataValidation)
			}
			if err := Validate(plan, nil, 6); err != nil {
				t.Errorf("substituted plan does not validate: %v", err)
			}
		})
	}
}

func TestPlan_AllowsCompletedDependencies(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("planner", `{
		"subtasks": [{"id": "next", "kind": "coach", "description": "Coach on results", "depends_on": ["earlier"]}]
	}`)
	p := New(stub, 6, nil)

	plan := p.Plan(context.Background(), planTask(), map[string]bool{"earlier": true})

	if len(plan.Tasks) != 1 || plan.Tasks[0].ID != "next" {
		t.Errorf("plan = %+v, want the single coach task accepted", plan.Tasks)
	}
}
