package planner

import "github.com/sentienthealth/roma/pkg/models"

// Default plan task IDs.
const (
	TaskDataValidation = "data_validation"
	TaskHealthMetrics  = "health_metrics"
	TaskCoaching       = "personalized_coaching"
	TaskReport         = "comprehensive_report"
)

// DefaultPlan is the fixed four-stage pipeline substituted whenever the
// collaborator cannot supply a usable plan:
// ingest -> metrics -> coach (after ingest+metrics) -> report (after
// metrics+coach).
func DefaultPlan(task models.Task) models.Plan {
	data := task.Data
	coachData := data.Clone()
	if coachData.Message == "" {
		coachData.Message = "Provide weekly health coaching based on metrics"
	}

	return models.Plan{
		Reasoning: "fixed default health analysis pipeline",
		Tasks: []models.Task{
			{
				ID:          TaskDataValidation,
				Kind:        models.StageIngest,
				Description: "Validate and normalize health data",
				Priority:    1,
				Data:        data.Clone(),
			},
			{
				ID:          TaskHealthMetrics,
				Kind:        models.StageMetrics,
				Description: "Calculate comprehensive health metrics",
				Priority:    2,
				DependsOn:   []string{TaskDataValidation},
				Data:        data.Clone(),
			},
			{
				ID:          TaskCoaching,
				Kind:        models.StageCoach,
				Description: "Generate personalized health recommendations",
				Priority:    3,
				DependsOn:   []string{TaskDataValidation, TaskHealthMetrics},
				Data:        coachData,
			},
			{
				ID:          TaskReport,
				Kind:        models.StageReport,
				Description: "Create comprehensive health report",
				Priority:    4,
				DependsOn:   []string{TaskHealthMetrics, TaskCoaching},
				Data:        data.Clone(),
			},
		},
	}
}
