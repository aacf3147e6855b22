package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sentienthealth/roma/pkg/models"
)

// maxBodyBytes caps request bodies; a week of logs is a few KB.
const maxBodyBytes = 1 << 20

// envelope is the common response wrapper.
type envelope struct {
	Endpoint  string `json:"endpoint"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// analyzeRequest is the /analyze body: a task description plus data.
type analyzeRequest struct {
	Description string               `json:"description"`
	Data        models.HealthPayload `json:"data"`
}

// chatRequest is the /chat body.
type chatRequest struct {
	Message string               `json:"message"`
	Data    models.HealthPayload `json:"data"`
}

// handleWeeklyReport runs the full pipeline over the posted payload.
func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	id, start := s.begin(r)

	var payload models.HealthPayload
	if !s.decode(w, r, id, &payload) {
		return
	}

	task := models.Task{
		ID:          id,
		Description: "Generate comprehensive weekly health analysis with validation, metrics, coaching and report",
		Data:        payload,
	}
	report, err := s.orch.Solve(r.Context(), task)
	if err != nil {
		s.fail(w, r, id, http.StatusServiceUnavailable, "request canceled")
		return
	}
	s.finish(w, r, id, start, report.Summary.Status, report)
}

// handleAnalyze runs an ad-hoc analysis task: the description decides
// whether it executes as a single stage or decomposes.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, start := s.begin(r)

	var req analyzeRequest
	if !s.decode(w, r, id, &req) {
		return
	}
	if req.Description == "" {
		req.Description = "Analyze health metrics and adherence for the provided data"
	}

	task := models.Task{ID: id, Description: req.Description, Data: req.Data}
	report, err := s.orch.Solve(r.Context(), task)
	if err != nil {
		s.fail(w, r, id, http.StatusServiceUnavailable, "request canceled")
		return
	}
	s.finish(w, r, id, start, report.Summary.Status, report)
}

// handleChat runs the coaching stage directly against the message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id, start := s.begin(r)

	var req chatRequest
	if !s.decode(w, r, id, &req) {
		return
	}
	if req.Message == "" {
		s.fail(w, r, id, http.StatusBadRequest, "message is required")
		return
	}

	data := req.Data
	data.Message = req.Message
	result := s.orch.RunStage(r.Context(), models.StageCoach, data)
	s.finish(w, r, id, start, string(result.Status), result)
}

// handleNormalize runs only the ingestion stage.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	id, start := s.begin(r)

	var payload models.HealthPayload
	if !s.decode(w, r, id, &payload) {
		return
	}

	result := s.orch.RunStage(r.Context(), models.StageIngest, payload)
	s.finish(w, r, id, start, string(result.Status), result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.inShutdown.Load() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"framework": "roma-health",
		"version":   s.version,
		"max_depth": s.orch.MaxDepth(),
		"stages":    s.orch.Stages(),
		"endpoints": []string{
			"POST /weekly-report", "POST /analyze", "POST /chat",
			"POST /normalize", "GET /healthz", "GET /info", "GET /example",
		},
	})
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ExamplePayload())
}

// ExamplePayload is a complete sample request body, served by /example and
// used by the CLI's example mode.
func ExamplePayload() models.HealthPayload {
	return models.HealthPayload{
		Profile: models.Profile{
			AgeYears:      34,
			Sex:           "female",
			HeightCm:      168,
			WeightKg:      65,
			ActivityLevel: "moderate",
		},
		Targets: map[string]float64{
			"steps":        70000,
			"sleep_hours":  52.5,
			"workouts":     4,
			"water_liters": 17.5,
		},
		DailyLogs: []models.DailyLog{
			{Date: "2026-08-24", Steps: 9200, SleepHours: 7.5, Workouts: 1, WaterLiters: 2.1},
			{Date: "2026-08-25", Steps: 11400, SleepHours: 6.8, Workouts: 0, WaterLiters: 2.4},
			{Date: "2026-08-26", Steps: 7800, SleepHours: 7.2, Workouts: 1, WaterLiters: 1.9},
			{Date: "2026-08-27", Steps: 10100, SleepHours: 8.0, Workouts: 0, WaterLiters: 2.6},
			{Date: "2026-08-28", Steps: 12300, SleepHours: 6.5, Workouts: 1, WaterLiters: 2.2},
		},
		Message: "Help me build a more consistent sleep schedule",
	}
}

// begin assigns the request ID and logs arrival.
func (s *Server) begin(r *http.Request) (string, time.Time) {
	id := uuid.NewString()
	s.log.Info("request", "id", id, "method", r.Method, "path", r.URL.Path)
	return id, time.Now()
}

// decode reads one JSON body; on failure it writes a 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, id string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.fail(w, r, id, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, id string, start time.Time, status string, result any) {
	s.log.Info("response",
		"id", id, "path", r.URL.Path,
		"status", status, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, envelope{
		Endpoint:  r.URL.Path,
		RequestID: id,
		Status:    status,
		Result:    result,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, id string, code int, msg string) {
	s.log.Warn("request failed", "id", id, "path", r.URL.Path, "code", code, "error", msg)
	writeJSON(w, code, envelope{
		Endpoint:  r.URL.Path,
		RequestID: id,
		Status:    "error",
		Error:     msg,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}
