package planner

import (
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/sentienthealth/roma/pkg/models"
)

// Validate checks that a plan is schedulable: non-empty and within the
// subtask cap, unique IDs, known stage kinds, every dependency resolvable
// within the plan or the parent's completed set, and an acyclic dependency
// relation.
func Validate(plan models.Plan, completed map[string]bool, maxSubtasks int) error {
	if len(plan.Tasks) == 0 {
		return fmt.Errorf("plan has no tasks")
	}
	if maxSubtasks > 0 && len(plan.Tasks) > maxSubtasks {
		return fmt.Errorf("plan has %d tasks, limit is %d", len(plan.Tasks), maxSubtasks)
	}

	if err := plan.CheckKinds(); err != nil {
		return err
	}

	ids := make(map[string]bool, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if t.ID == "" {
			return fmt.Errorf("plan contains a task with no id")
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		ids[t.ID] = true
	}

	for _, t := range plan.Tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return fmt.Errorf("task %q depends on itself", t.ID)
			}
			if !ids[dep] && !completed[dep] {
				return fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	// Cycle check over the in-plan edges only; completed dependencies are
	// already resolved and cannot participate in a cycle.
	var edges []toposort.Edge
	for _, t := range plan.Tasks {
		inPlanDeps := 0
		for _, dep := range t.DependsOn {
			if ids[dep] {
				edges = append(edges, toposort.Edge{dep, t.ID})
				inPlanDeps++
			}
		}
		if inPlanDeps == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
		}
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("plan dependency graph contains a cycle: %w", err)
	}
	return nil
}
