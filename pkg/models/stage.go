package models

// StageKind identifies one of the specialized stage executors.
type StageKind string

const (
	// StageIngest validates and normalizes incoming health data.
	StageIngest StageKind = "ingest"
	// StageMetrics computes descriptive statistics and derived indicators.
	StageMetrics StageKind = "metrics"
	// StageCoach produces personalized recommendation sets.
	StageCoach StageKind = "coach"
	// StageReport synthesizes a comprehensive health report.
	StageReport StageKind = "report"
)

// Valid returns true if the kind is a known stage.
func (k StageKind) Valid() bool {
	switch k {
	case StageIngest, StageMetrics, StageCoach, StageReport:
		return true
	default:
		return false
	}
}

// AllStages lists every stage kind in pipeline order.
func AllStages() []StageKind {
	return []StageKind{StageIngest, StageMetrics, StageCoach, StageReport}
}

// ResultStatus is the terminal status of a stage invocation.
type ResultStatus string

const (
	// StatusOK indicates the stage produced its full payload.
	StatusOK ResultStatus = "ok"
	// StatusError indicates the stage degraded to its fallback payload.
	StatusError ResultStatus = "error"
)

// Valid returns true if the status is a known value.
func (s ResultStatus) Valid() bool {
	return s == StatusOK || s == StatusError
}
