package models

// StageResult is the structured output of one stage invocation. Results are
// produced once and never mutated; the aggregator merges them, it does not
// edit them. Exactly one payload pointer is set, matching Stage.
type StageResult struct {
	// Stage identifies the executor that produced this result.
	Stage StageKind `json:"stage"`
	// Status is ok when the stage produced its full payload, error when it
	// degraded to its fallback.
	Status ResultStatus `json:"status"`
	// Error describes why the stage degraded, if it did.
	Error string `json:"error,omitempty"`

	Ingestion *IngestionData `json:"ingestion,omitempty"`
	Metrics   *MetricsData   `json:"metrics,omitempty"`
	Coaching  *CoachingData  `json:"coaching,omitempty"`
	Report    *ReportData    `json:"report,omitempty"`
}

// OK returns true if the stage completed without degrading.
func (r StageResult) OK() bool {
	return r.Status == StatusOK
}

// IngestionData is the ingest stage payload: a normalized superset of the
// input plus validation findings.
type IngestionData struct {
	// Normalized is the validated payload; unknown fields pass through.
	Normalized HealthPayload `json:"normalized"`
	// BMI is weight / height^2, set when height and weight are present.
	BMI float64 `json:"bmi,omitempty"`
	// DataQuality is "good" or "incomplete".
	DataQuality string `json:"data_quality"`
	// DataPoints counts the non-zero tracked metrics across all logs.
	DataPoints int `json:"data_points"`
	// Warnings lists validation findings worth surfacing.
	Warnings []string `json:"warnings,omitempty"`
}

// MetricGroup holds per-metric values keyed by metric name.
type MetricGroup map[string]float64

// MetricsData is the metrics stage payload.
type MetricsData struct {
	// Averages holds per-day means over the logged period.
	Averages MetricGroup `json:"averages"`
	// Totals holds summed values over the logged period.
	Totals MetricGroup `json:"totals"`
	// Adherence maps each target metric to a percentage in [0,100].
	Adherence MetricGroup `json:"adherence"`
	// Scores holds 0-100 component scores plus "overall".
	Scores MetricGroup `json:"scores"`
	// NextTargets holds suggested targets for the coming week.
	NextTargets MetricGroup `json:"next_targets,omitempty"`
	// BMI, BMR and TDEE are derived indicators; zero when the profile
	// lacks the inputs to compute them.
	BMI  float64 `json:"bmi,omitempty"`
	BMR  float64 `json:"bmr,omitempty"`
	TDEE float64 `json:"tdee,omitempty"`
}

// CoachingData is the coach stage payload. Every slice is non-empty even on
// fallback; the system never returns an empty coaching result.
type CoachingData struct {
	DailySuggestions []string `json:"daily_suggestions"`
	WeeklyFocus      []string `json:"weekly_focus"`
	HabitChanges     []string `json:"habit_changes"`
	Motivation       string   `json:"motivation"`
	Milestones       []string `json:"milestones"`
}

// WeeklyPlan structures the report stage's plan for the coming week.
type WeeklyPlan struct {
	PrimaryGoals   []string `json:"primary_goals"`
	DailyActions   []string `json:"daily_actions"`
	SuccessMetrics []string `json:"success_metrics"`
}

// ReportData is the report stage payload.
type ReportData struct {
	ExecutiveSummary string     `json:"executive_summary"`
	// HealthScore is in [0,100].
	HealthScore float64    `json:"health_score"`
	Insights    []string   `json:"insights"`
	WeeklyPlan  WeeklyPlan `json:"weekly_plan"`
	// NextActions holds at most three items.
	NextActions []string `json:"next_actions"`
}
