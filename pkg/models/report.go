package models

import "time"

// ReportSummary is the quick-access view of an aggregated report.
type ReportSummary struct {
	HealthScore float64 `json:"health_score"`
	Status      string  `json:"status"`
	// TopRecommendations and NextActions hold at most three items each.
	TopRecommendations []string `json:"top_recommendations"`
	NextActions        []string `json:"next_actions"`
}

// ValidatedData summarizes what ingestion accepted.
type ValidatedData struct {
	Normalized  HealthPayload `json:"normalized"`
	DataQuality string        `json:"data_quality"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// ExecutionMeta records how a request was solved.
type ExecutionMeta struct {
	Framework string        `json:"framework"`
	Duration  time.Duration `json:"duration"`
	MaxDepth  int           `json:"max_depth"`
	// DirectStage is set when the task short-circuited through a single
	// stage instead of a full plan.
	DirectStage StageKind `json:"direct_stage,omitempty"`
}

// AggregatedReport is the final merged output returned to the request
// boundary; created exactly once per top-level request and owned by the
// orchestrator's caller.
type AggregatedReport struct {
	ValidatedData ValidatedData `json:"validated_data"`
	HealthMetrics *MetricsData  `json:"health_metrics,omitempty"`
	HealthScore   float64       `json:"health_score"`
	Coaching      CoachingData  `json:"coaching_recommendations"`
	Report        ReportData    `json:"comprehensive_report"`
	Summary       ReportSummary `json:"summary"`
	// AgentExecution maps each stage id that ran to its terminal status,
	// including stages that degraded internally.
	AgentExecution map[string]ResultStatus `json:"agent_execution"`
	Meta           ExecutionMeta           `json:"meta"`
}
