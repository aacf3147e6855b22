// Package models defines the task, plan and result types shared across the
// orchestration core.
package models

import "fmt"

// DefaultPriority is assigned to tasks with no explicit priority hint.
const DefaultPriority = 3

// Task is a unit of work submitted to the orchestrator. Tasks are immutable
// once created; decomposition builds new Tasks rather than mutating the
// parent.
type Task struct {
	// ID is unique within a plan.
	ID string `json:"id"`
	// Kind selects the stage that must run this task. Empty means the
	// classifier decides.
	Kind StageKind `json:"kind,omitempty"`
	// Description is free text describing the work.
	Description string `json:"description"`
	// Priority is a 1-5 tie-break ordering hint (1 runs first).
	Priority int `json:"priority,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Data is the payload forwarded to the stage.
	Data HealthPayload `json:"data"`
}

// Plan is an ordered sequence of sub-tasks produced for one non-atomic task.
// The dependency relation among its tasks must be acyclic; validation lives
// in the planner, which owns plan construction.
type Plan struct {
	Tasks []Task `json:"tasks"`
	// Reasoning is the collaborator's explanation of the decomposition.
	Reasoning string `json:"reasoning,omitempty"`
}

// IDs returns the task IDs in declaration order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Lookup returns the task with the given ID.
func (p Plan) Lookup(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// CheckKinds verifies every task names a known stage kind. Unknown stage
// names are rejected at plan construction, not at call time.
func (p Plan) CheckKinds() error {
	for _, t := range p.Tasks {
		if !t.Kind.Valid() {
			return fmt.Errorf("task %q names unknown stage %q", t.ID, t.Kind)
		}
	}
	return nil
}
