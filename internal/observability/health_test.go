package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHandleHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	HandleHealth()(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Status = %q, want ok", body.Status)
	}
	if body.Version == "" {
		t.Error("Version is empty")
	}
}

func TestHandleReady_all_ok(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		ModelsRegistered: func() bool { return true },
		Database:         stubChecker{},
		ReplayStore:      stubChecker{},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("Status = %q, want ready", body.Status)
	}
	if len(body.Checks) != 3 {
		t.Errorf("Checks = %v, want registry, database, replay_store", body.Checks)
	}
}

func TestHandleReady_failing_dependency(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		ModelsRegistered: func() bool { return true },
		Database:         stubChecker{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "not_ready" {
		t.Errorf("Status = %q, want not_ready", body.Status)
	}
	if body.Checks["database"].Error != "connection refused" {
		t.Errorf("database check = %+v", body.Checks["database"])
	}
}

func TestHandleReady_no_models(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		ModelsRegistered: func() bool { return false },
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
