// Package stages implements the four specialized executors of the health
// analysis pipeline: ingest, metrics, coach and report. Every stage follows
// the same failure discipline: it never aborts the pipeline, it returns a
// structurally valid result and degrades content quality instead of
// propagating errors.
package stages

import (
	"context"
	"log/slog"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

// State is the accumulated view of one orchestration frame: the request
// payload plus every payload produced by previously-completed stages.
// States are passed by value; WithResult returns a new State rather than
// mutating the receiver.
type State struct {
	// Data is the working payload. Once ingestion completes successfully
	// it is the normalized superset of the request.
	Data models.HealthPayload

	Ingestion *models.IngestionData
	Metrics   *models.MetricsData
	Coaching  *models.CoachingData
	Report    *models.ReportData
}

// WithResult folds a stage result into the state.
func (s State) WithResult(r models.StageResult) State {
	switch {
	case r.Ingestion != nil:
		s.Ingestion = r.Ingestion
		if r.OK() {
			s.Data = r.Ingestion.Normalized
		}
	case r.Metrics != nil:
		s.Metrics = r.Metrics
	case r.Coaching != nil:
		s.Coaching = r.Coaching
	case r.Report != nil:
		s.Report = r.Report
	}
	return s
}

// Stage is one specialized executor: a pure function of accumulated state
// to a partial result.
type Stage interface {
	Kind() models.StageKind
	Execute(ctx context.Context, state State) models.StageResult
}

// Registry maps stage kinds to implementations. It is built once at
// orchestrator construction and never modified afterwards.
type Registry struct {
	stages map[models.StageKind]Stage
}

// NewRegistry builds the full stage set against one collaborator.
func NewRegistry(collab reasoning.Collaborator, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{stages: make(map[models.StageKind]Stage, 4)}
	for _, s := range []Stage{
		NewIngest(collab, log),
		NewMetrics(collab, log),
		NewCoach(collab, log),
		NewReport(collab, log),
	} {
		r.stages[s.Kind()] = s
	}
	return r
}

// Lookup returns the stage for a kind.
func (r *Registry) Lookup(kind models.StageKind) (Stage, bool) {
	s, ok := r.stages[kind]
	return s, ok
}

// Kinds returns the registered stage kinds in pipeline order.
func (r *Registry) Kinds() []models.StageKind {
	kinds := make([]models.StageKind, 0, len(r.stages))
	for _, k := range models.AllStages() {
		if _, ok := r.stages[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
