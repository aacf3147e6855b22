package stages

import (
	"testing"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

func TestRegistry_CoversAllStages(t *testing.T) {
	r := NewRegistry(&reasoning.Stub{}, testLogger())

	for _, kind := range models.AllStages() {
		stage, ok := r.Lookup(kind)
		if !ok {
			t.Errorf("Lookup(%q) found no stage", kind)
			continue
		}
		if stage.Kind() != kind {
			t.Errorf("stage registered under %q reports kind %q", kind, stage.Kind())
		}
	}

	if _, ok := r.Lookup(models.StageKind("psychic")); ok {
		t.Error("Lookup should reject unknown kinds")
	}

	kinds := r.Kinds()
	if len(kinds) != 4 || kinds[0] != models.StageIngest || kinds[3] != models.StageReport {
		t.Errorf("Kinds() = %v, want pipeline order", kinds)
	}
}

func TestState_WithResult(t *testing.T) {
	normalized := models.HealthPayload{Message: "normalized"}
	base := State{Data: models.HealthPayload{Message: "raw"}}

	okIngest := base.WithResult(models.StageResult{
		Stage:     models.StageIngest,
		Status:    models.StatusOK,
		Ingestion: &models.IngestionData{Normalized: normalized},
	})
	if okIngest.Data.Message != "normalized" {
		t.Errorf("ok ingestion should replace working data, got %q", okIngest.Data.Message)
	}
	if base.Data.Message != "raw" {
		t.Error("WithResult mutated the receiver")
	}

	degradedIngest := base.WithResult(models.StageResult{
		Stage:     models.StageIngest,
		Status:    models.StatusError,
		Ingestion: &models.IngestionData{Normalized: normalized},
	})
	if degradedIngest.Data.Message != "raw" {
		t.Error("degraded ingestion must not replace working data")
	}
	if degradedIngest.Ingestion == nil {
		t.Error("degraded ingestion payload should still be recorded")
	}

	withMetrics := base.WithResult(models.StageResult{
		Stage:   models.StageMetrics,
		Status:  models.StatusOK,
		Metrics: &models.MetricsData{BMI: 23.03},
	})
	if withMetrics.Metrics == nil || withMetrics.Metrics.BMI != 23.03 {
		t.Errorf("metrics result not folded: %+v", withMetrics.Metrics)
	}
}
