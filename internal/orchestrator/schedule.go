package orchestrator

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sentienthealth/roma/internal/stages"
	"github.com/sentienthealth/roma/pkg/models"
)

// runPlan executes a validated plan in dependency order and folds every
// stage result into the shared state. completed seeds the resolved-ID set
// handed to nested decompositions; each finished wave extends it. Ties
// between ready tasks break by ascending priority, then declaration order,
// so a given plan always runs in the same order.
func (o *Orchestrator) runPlan(ctx context.Context, plan models.Plan, depth int, state stages.State, completed map[string]bool) (stages.State, []taskResult, error) {
	waves := scheduleWaves(plan)

	done := make(map[string]bool, len(completed)+len(plan.Tasks))
	for id := range completed {
		done[id] = true
	}

	var results []taskResult
	for _, wave := range waves {
		var (
			waveResults []taskResult
			err         error
		)
		if o.parallel && len(wave) > 1 {
			waveResults, err = o.runWaveParallel(ctx, wave, depth, state, done)
		} else {
			waveResults, err = o.runWaveSequential(ctx, wave, depth, state, done)
		}
		if err != nil {
			return state, nil, err
		}
		for _, r := range waveResults {
			state = state.WithResult(r.Result)
			done[r.ID] = true
		}
		results = append(results, waveResults...)
	}
	return state, results, nil
}

func (o *Orchestrator) runWaveSequential(ctx context.Context, wave []models.Task, depth int, state stages.State, completed map[string]bool) ([]taskResult, error) {
	var results []taskResult
	for _, task := range wave {
		// Sequential tasks in the same wave still see each other's
		// output; the fold happens per task here, per wave above.
		frame := state
		seen := completed
		if len(results) > 0 {
			seen = make(map[string]bool, len(completed)+len(results))
			for id := range completed {
				seen[id] = true
			}
			for _, r := range results {
				frame = frame.WithResult(r.Result)
				seen[r.ID] = true
			}
		}
		_, sub, _, err := o.solve(ctx, task, depth, frame, seen)
		if err != nil {
			return nil, err
		}
		results = append(results, sub...)
	}
	return results, nil
}

// runWaveParallel executes one wave of independent tasks concurrently.
// Each task sees the wave-entry state and completed set; results merge
// afterwards in declaration order, so the fold is identical to a sequential
// run of an already-independent wave.
func (o *Orchestrator) runWaveParallel(ctx context.Context, wave []models.Task, depth int, state stages.State, completed map[string]bool) ([]taskResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	slots := make([][]taskResult, len(wave))
	for i, task := range wave {
		g.Go(func() error {
			_, sub, _, err := o.solve(ctx, task, depth, state, completed)
			if err != nil {
				return err
			}
			slots[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var results []taskResult
	for _, sub := range slots {
		results = append(results, sub...)
	}
	return results, nil
}

// scheduleWaves partitions a plan into dependency waves with Kahn's
// algorithm. Plans are cycle-checked at validation time; any remainder
// here (deps outside the plan) is appended as a final wave rather than
// dropped, keeping execution total.
func scheduleWaves(plan models.Plan) [][]models.Task {
	order := make(map[string]int, len(plan.Tasks))
	indegree := make(map[string]int, len(plan.Tasks))
	dependents := make(map[string][]string, len(plan.Tasks))
	for i, t := range plan.Tasks {
		order[t.ID] = i
		indegree[t.ID] = 0
	}
	for _, t := range plan.Tasks {
		for _, dep := range t.DependsOn {
			if _, inPlan := order[dep]; !inPlan {
				// Satisfied before this plan ran.
				continue
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	done := make(map[string]bool, len(plan.Tasks))
	var waves [][]models.Task
	for len(done) < len(plan.Tasks) {
		var ready []models.Task
		for _, t := range plan.Tasks {
			if !done[t.ID] && indegree[t.ID] == 0 {
				ready = append(ready, t)
			}
		}
		if len(ready) == 0 {
			// Unreachable for validated plans; flush the remainder in
			// declaration order so nothing is silently skipped.
			for _, t := range plan.Tasks {
				if !done[t.ID] {
					ready = append(ready, t)
				}
			}
		}
		sortWave(ready, order)
		for _, t := range ready {
			done[t.ID] = true
			for _, dep := range dependents[t.ID] {
				indegree[dep]--
			}
		}
		waves = append(waves, ready)
	}
	return waves
}

func sortWave(wave []models.Task, order map[string]int) {
	sort.SliceStable(wave, func(i, j int) bool {
		if wave[i].Priority != wave[j].Priority {
			return wave[i].Priority < wave[j].Priority
		}
		return order[wave[i].ID] < order[wave[j].ID]
	})
}
