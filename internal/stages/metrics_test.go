package stages

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

func TestMetrics_ComputesAveragesAndTotals(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("metrics analyst",
		`{"next_targets": {"steps": 72000}}`)
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{Data: weekPayload()})

	if !got.OK() {
		t.Fatalf("Execute() status = %s (%s), want ok", got.Status, got.Error)
	}
	m := got.Metrics

	if m.Totals["steps"] != 50800 {
		t.Errorf("total steps = %v, want 50800", m.Totals["steps"])
	}
	if m.Averages["steps"] != 10160 {
		t.Errorf("average steps = %v, want 10160", m.Averages["steps"])
	}
	// (7.5+6.8+7.2+8.0+6.5)/5 = 7.2
	if m.Averages["sleep_hours"] != 7.2 {
		t.Errorf("average sleep = %v, want 7.2", m.Averages["sleep_hours"])
	}
	if m.Totals["workouts"] != 3 {
		t.Errorf("total workouts = %v, want 3", m.Totals["workouts"])
	}
	if m.NextTargets["steps"] != 72000 {
		t.Errorf("next targets = %v, want collaborator's proposal", m.NextTargets)
	}
}

func TestMetrics_AdherenceClampedTo100(t *testing.T) {
	payload := models.HealthPayload{
		Targets: map[string]float64{
			"steps":       10000, // far exceeded
			"sleep_hours": 100,   // far missed
			"workouts":    0,     // ignored, not a positive target
		},
		DailyLogs: []models.DailyLog{
			{Steps: 9000, SleepHours: 7},
			{Steps: 8000, SleepHours: 7},
		},
	}
	stub := (&reasoning.Stub{}).Respond("metrics analyst", `{"next_targets": {"steps": 18000}}`)
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{Data: payload})

	m := got.Metrics
	if m.Adherence["steps"] != 100 {
		t.Errorf("steps adherence = %v, want clamped 100", m.Adherence["steps"])
	}
	if m.Adherence["sleep_hours"] != 14 {
		t.Errorf("sleep adherence = %v, want 14", m.Adherence["sleep_hours"])
	}
	if _, ok := m.Adherence["workouts"]; ok {
		t.Error("zero target should not produce an adherence entry")
	}
}

func TestMetrics_DerivedIndicators(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("metrics analyst", `{"next_targets": {"steps": 72000}}`)
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{Data: weekPayload()})
	m := got.Metrics

	if m.BMI != 23.03 {
		t.Errorf("BMI = %v, want 23.03", m.BMI)
	}
	// Mifflin-St Jeor, female: 10*65 + 6.25*168 - 5*34 - 161 = 1369
	if m.BMR != 1369 {
		t.Errorf("BMR = %v, want 1369", m.BMR)
	}
	// moderate factor 1.55
	if want := math.Round(1369 * 1.55); m.TDEE != want {
		t.Errorf("TDEE = %v, want %v", m.TDEE, want)
	}
}

func TestMetrics_BMRSexOffsets(t *testing.T) {
	base := models.Profile{AgeYears: 30, HeightCm: 180, WeightKg: 80}

	male := base
	male.Sex = "male"
	female := base
	female.Sex = "female"

	// 10*80 + 6.25*180 - 5*30 = 1775
	if got := mifflinStJeor(male); got != 1780 {
		t.Errorf("male BMR = %v, want 1780", got)
	}
	if got := mifflinStJeor(female); got != 1614 {
		t.Errorf("female BMR = %v, want 1614", got)
	}
}

func TestMetrics_Scores(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("metrics analyst", `{"next_targets": {"steps": 72000}}`)
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{Data: weekPayload()})
	m := got.Metrics

	for _, name := range []string{"activity", "sleep", "hydration", "overall"} {
		score, ok := m.Scores[name]
		if !ok {
			t.Errorf("missing %s score", name)
			continue
		}
		if score < 0 || score > 100 {
			t.Errorf("%s score = %v, out of [0,100]", name, score)
		}
	}
	// Average sleep 7.2 is 0.3h from the 7.5 ideal.
	if want := round1((1 - 0.3/4.5) * 100); m.Scores["sleep"] != want {
		t.Errorf("sleep score = %v, want %v", m.Scores["sleep"], want)
	}
}

func TestMetrics_NoDataDegradesWithEmptyGroups(t *testing.T) {
	stub := &reasoning.Stub{Err: errors.New("must not be called")}
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{})

	if got.OK() {
		t.Fatal("no data should degrade the stage")
	}
	m := got.Metrics
	if m == nil {
		t.Fatal("degraded result carries no metrics payload")
	}
	if m.Averages == nil || m.Totals == nil || m.Adherence == nil || m.Scores == nil {
		t.Error("degraded metric groups must be empty, not nil")
	}
	if len(stub.Calls) != 0 {
		t.Error("collaborator should not be consulted without data")
	}
}

func TestMetrics_CollaboratorFailureKeepsComputedValues(t *testing.T) {
	stub := &reasoning.Stub{Err: errors.New("api down")}
	s := NewMetrics(stub, testLogger())

	got := s.Execute(context.Background(), State{Data: weekPayload()})

	if got.OK() {
		t.Fatal("collaborator failure should degrade the stage")
	}
	m := got.Metrics
	if m.Totals["steps"] != 50800 {
		t.Errorf("computed totals should survive degradation, got %v", m.Totals["steps"])
	}
	if len(m.NextTargets) == 0 {
		t.Error("degraded result should carry fallback next targets")
	}
	if v := m.NextTargets["overall_score"]; v != clampFloat(m.Scores["overall"]+5, 0, 100) {
		t.Errorf("fallback target = %v, want overall+5", v)
	}
}

func TestMetrics_PrefersNormalizedData(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("metrics analyst", `{"next_targets": {"steps": 1}}`)
	s := NewMetrics(stub, testLogger())

	raw := models.HealthPayload{DailyLogs: []models.DailyLog{{Steps: 999999}}}
	normalized := models.HealthPayload{DailyLogs: []models.DailyLog{{Steps: 50000}}}

	got := s.Execute(context.Background(), State{
		Data:      raw,
		Ingestion: &models.IngestionData{Normalized: normalized},
	})

	if got.Metrics.Totals["steps"] != 50000 {
		t.Errorf("totals = %v, want computed from normalized data", got.Metrics.Totals["steps"])
	}
}
