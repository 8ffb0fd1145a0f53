package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadinessHandler_AllHealthy(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ReadinessHandler(map[string]CheckFunc{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return nil },
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("expected status ready, got %q", body.Status)
	}
	if body.Checks["redis"] != "ok" {
		t.Errorf("expected redis ok, got %q", body.Checks["redis"])
	}
}

func TestReadinessHandler_FailingCheck(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := ReadinessHandler(map[string]CheckFunc{
		"postgres": func(ctx context.Context) error { return nil },
		"rabbitmq": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "not_ready" {
		t.Errorf("expected status not_ready, got %q", body.Status)
	}
	if body.Checks["rabbitmq"] != "connection refused" {
		t.Errorf("unexpected rabbitmq result %q", body.Checks["rabbitmq"])
	}
	if body.Checks["postgres"] != "ok" {
		t.Errorf("expected postgres ok, got %q", body.Checks["postgres"])
	}
}

func TestPoolStats_JSON(t *testing.T) {
	stats := PoolStats{TotalConns: 2, MaxConns: 10, AcquireDuration: "250ms", Healthy: true}
	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "max_conns", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in JSON", key)
		}
	}
}
