// Package orchestrator drives a health analysis request through
// classification, decomposition, dependency-ordered stage execution and
// aggregation. The design principle is graceful degradation at every layer,
// total failure at none: the only error Solve can return is the caller
// abandoning the request.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentienthealth/roma/internal/atomizer"
	"github.com/sentienthealth/roma/internal/planner"
	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/internal/stages"
	"github.com/sentienthealth/roma/pkg/models"
)

// Framework names this implementation in report metadata.
const Framework = "roma-health/1.0"

// Options configures an Orchestrator.
type Options struct {
	// MaxDepth bounds the solve recursion. Zero selects 3.
	MaxDepth int
	// MaxSubtasks caps accepted plan sizes. Zero selects 6.
	MaxSubtasks int
	// Parallel executes independent plan tasks concurrently. Sequential
	// topological execution is always a valid alternative.
	Parallel bool
	// Policy overrides the classifier's keyword table.
	Policy *atomizer.Policy
	// Log is the base logger.
	Log *slog.Logger
}

// Orchestrator owns the stage registry and the planning components for the
// lifetime of the process. It holds no per-request state; Solve is safe for
// concurrent use.
type Orchestrator struct {
	atomizer   *atomizer.Atomizer
	planner    *planner.Planner
	registry   *stages.Registry
	aggregator *Aggregator
	maxDepth   int
	parallel   bool
	log        *slog.Logger
	// now supplies timestamps for report metadata; replaceable so repeated
	// solves over the same inputs produce identical reports.
	now func() time.Time
}

// New constructs an Orchestrator with an immutable stage registry resolved
// once, here.
func New(collab reasoning.Collaborator, opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Orchestrator{
		atomizer:   atomizer.New(collab, opts.Policy, log),
		planner:    planner.New(collab, opts.MaxSubtasks, log),
		registry:   stages.NewRegistry(collab, log),
		aggregator: NewAggregator(collab, log),
		maxDepth:   maxDepth,
		parallel:   opts.Parallel,
		log:        log.With("component", "orchestrator"),
		now:        time.Now,
	}
}

// MaxDepth returns the configured recursion bound.
func (o *Orchestrator) MaxDepth() int { return o.maxDepth }

// Stages returns the registered stage kinds.
func (o *Orchestrator) Stages() []models.StageKind { return o.registry.Kinds() }

// Solve runs one top-level task to completion and returns the aggregated
// report. Sub-results degrade per stage contracts; the returned error is
// non-nil only when ctx is canceled.
func (o *Orchestrator) Solve(ctx context.Context, task models.Task) (models.AggregatedReport, error) {
	start := o.now()

	state := stages.State{Data: task.Data}
	state, results, direct, err := o.solve(ctx, task, 0, state, nil)
	if err != nil {
		return models.AggregatedReport{}, err
	}

	byID := make(map[string]models.StageResult, len(results))
	for _, r := range results {
		byID[r.ID] = r.Result
	}
	report := o.aggregator.Combine(ctx, task, state, byID)
	report.Meta = models.ExecutionMeta{
		Framework:   Framework,
		Duration:    o.now().Sub(start),
		MaxDepth:    o.maxDepth,
		DirectStage: direct,
	}
	return report, nil
}

// RunStage executes a single stage directly against a fresh state built
// from the payload. Used by boundary endpoints that address one stage.
func (o *Orchestrator) RunStage(ctx context.Context, kind models.StageKind, data models.HealthPayload) models.StageResult {
	stage, ok := o.registry.Lookup(kind)
	if !ok {
		// Unknown kinds are rejected at plan construction; reaching this
		// is a programming error at the boundary.
		return models.StageResult{
			Stage:  kind,
			Status: models.StatusError,
			Error:  fmt.Sprintf("unknown stage %q", kind),
		}
	}
	return stage.Execute(ctx, stages.State{Data: data})
}

// taskResult pairs a completed plan task with its stage result, in
// execution order.
type taskResult struct {
	ID     string
	Result models.StageResult
}

// solve is the recursive driver: classify, then either execute directly or
// decompose, run the plan in dependency order and fold results into state.
// completed names the task IDs already resolved in the enclosing frames, so
// a nested plan may declare dependencies on them. Results are keyed by plan
// task ID (or the task's own ID on the direct path) and ordered by
// completion. directStage is set when the top frame short-circuited to a
// single stage.
func (o *Orchestrator) solve(ctx context.Context, task models.Task, depth int, state stages.State, completed map[string]bool) (stages.State, []taskResult, models.StageKind, error) {
	if err := ctx.Err(); err != nil {
		return state, nil, "", err
	}

	// Depth guard: fail closed into atomic execution rather than growing
	// the stack on adversarial or buggy plans.
	if depth >= o.maxDepth {
		o.log.Warn("max depth reached, executing atomically", "depth", depth, "task", task.ID)
		result := o.executeDirect(ctx, task, o.routeStage(task, ""), state)
		return state.WithResult(result), []taskResult{{resultKey(task, result), result}}, result.Stage, nil
	}

	verdict := o.atomizer.Classify(ctx, task)
	o.log.Debug("classified task",
		"task", task.ID, "depth", depth,
		"atomic", verdict.Atomic, "stage", verdict.SuggestedStage)

	if verdict.Atomic {
		result := o.executeDirect(ctx, task, o.routeStage(task, verdict.SuggestedStage), state)
		return state.WithResult(result), []taskResult{{resultKey(task, result), result}}, result.Stage, nil
	}

	plan := o.planner.Plan(ctx, task, completed)
	o.log.Debug("decomposed task", "task", task.ID, "subtasks", len(plan.Tasks))

	state, results, err := o.runPlan(ctx, plan, depth+1, state, completed)
	if err != nil {
		return state, nil, "", err
	}
	return state, results, "", nil
}

// executeDirect dispatches one task to one stage.
func (o *Orchestrator) executeDirect(ctx context.Context, task models.Task, kind models.StageKind, state stages.State) models.StageResult {
	stage, ok := o.registry.Lookup(kind)
	if !ok {
		// routeStage only emits registered kinds; defensive dispatch
		// failure still degrades instead of aborting.
		return models.StageResult{
			Stage:  kind,
			Status: models.StatusError,
			Error:  fmt.Sprintf("no stage registered for %q", kind),
		}
	}

	// Accumulated state wins over the subtask's snapshot of the original
	// payload, so normalized data flows to dependents. A plan task may
	// still contribute a coaching message the original lacked.
	frame := state
	if frame.Data.Empty() {
		frame.Data = task.Data
	} else if frame.Data.Message == "" && task.Data.Message != "" {
		frame.Data.Message = task.Data.Message
	}
	return stage.Execute(ctx, frame)
}

// routeStage picks the stage for direct execution: the task's declared
// kind, then the classifier's suggestion, then keyword routing over the
// description.
func (o *Orchestrator) routeStage(task models.Task, suggested models.StageKind) models.StageKind {
	if task.Kind.Valid() {
		return task.Kind
	}
	if suggested.Valid() {
		return suggested
	}
	return o.atomizer.RouteStage(task.Description)
}

func resultKey(task models.Task, result models.StageResult) string {
	if task.ID != "" {
		return task.ID
	}
	return string(result.Stage)
}
