package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentienthealth/roma/internal/orchestrator"
	"github.com/sentienthealth/roma/internal/reasoning"
	"github.com/sentienthealth/roma/pkg/models"
)

func newTestServer(collab reasoning.Collaborator) *Server {
	log := slog.New(slog.DiscardHandler)
	orch := orchestrator.New(collab, orchestrator.Options{Log: log})
	return New(orch, Config{Addr: ":0", Version: "test"}, log)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	rec := getPath(s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestInfo(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	rec := getPath(s.Handler(), "/info")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /info = %d, want 200", rec.Code)
	}

	var body struct {
		Framework string   `json:"framework"`
		Version   string   `json:"version"`
		MaxDepth  int      `json:"max_depth"`
		Stages    []string `json:"stages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Version != "test" || body.MaxDepth != 3 || len(body.Stages) != 4 {
		t.Errorf("info = %+v, want version test, depth 3, 4 stages", body)
	}
}

func TestExample_RoundTripsAsWeeklyReportInput(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	rec := getPath(s.Handler(), "/example")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /example = %d, want 200", rec.Code)
	}

	var payload models.HealthPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("example payload does not decode: %v", err)
	}
	if payload.Empty() || len(payload.DailyLogs) == 0 {
		t.Errorf("example payload = %+v, want usable sample data", payload)
	}
}

func TestWeeklyReport_OfflineStillProducesReport(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	rec := postJSON(t, s.Handler(), "/weekly-report", ExamplePayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /weekly-report = %d, want 200 even degraded", rec.Code)
	}

	var body struct {
		Endpoint  string                  `json:"endpoint"`
		RequestID string                  `json:"request_id"`
		Status    string                  `json:"status"`
		Result    models.AggregatedReport `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.RequestID == "" {
		t.Error("envelope carries no request id")
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded offline", body.Status)
	}
	if body.Result.HealthScore <= 0 {
		t.Errorf("health score = %v, want computed from metrics", body.Result.HealthScore)
	}
	if len(body.Result.AgentExecution) != 4 {
		t.Errorf("agent execution = %v, want all 4 stages", body.Result.AgentExecution)
	}
}

func TestWeeklyReport_RejectsMalformedBody(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	req := httptest.NewRequest(http.MethodPost, "/weekly-report", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rec.Code)
	}
}

func TestChat(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	t.Run("missing message rejected", func(t *testing.T) {
		rec := postJSON(t, s.Handler(), "/chat", chatRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST /chat without message = %d, want 400", rec.Code)
		}
	})

	t.Run("offline coaching degrades to fallback", func(t *testing.T) {
		rec := postJSON(t, s.Handler(), "/chat", chatRequest{Message: "help me sleep"})
		if rec.Code != http.StatusOK {
			t.Fatalf("POST /chat = %d, want 200", rec.Code)
		}

		var body struct {
			Status string             `json:"status"`
			Result models.StageResult `json:"result"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if body.Status != "error" {
			t.Errorf("status = %q, want error offline", body.Status)
		}
		if body.Result.Coaching == nil || len(body.Result.Coaching.DailySuggestions) == 0 {
			t.Errorf("result = %+v, want fallback coaching content", body.Result)
		}
	})
}

func TestNormalize(t *testing.T) {
	stub := (&reasoning.Stub{}).Respond("validation expert",
		`{"data_quality": "good", "warnings": []}`)
	s := newTestServer(stub)

	rec := postJSON(t, s.Handler(), "/normalize", ExamplePayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /normalize = %d, want 200", rec.Code)
	}

	var body struct {
		Status string             `json:"status"`
		Result models.StageResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Result.Ingestion == nil || body.Result.Ingestion.DataQuality != "good" {
		t.Errorf("result = %+v, want good ingestion payload", body.Result)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(reasoning.Offline())

	rec := getPath(s.Handler(), "/weekly-report")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /weekly-report = %d, want 405", rec.Code)
	}
}
