package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/config"
	"github.com/clinic/dashboard/internal/platform/db"
	"github.com/clinic/dashboard/internal/platform/mailer"
	"github.com/clinic/dashboard/internal/platform/metrics"
	"github.com/clinic/dashboard/internal/platform/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		AuthMode:       "external",
		AuthIssuer:     "https://issuer.test",
		AuthJWKSURL:    "http://127.0.0.1:1/jwks",
		LinkSecret:     "test-link-secret",
		LinkTTL:        time.Hour,
		PublicBaseURL:  "https://dash.test",
		PracticeName:   "Test Practice",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 5 * time.Second,
		PublishTimeout: time.Second,
	}
}

// testRouter builds the full route table without a database. Only routes
// that never reach a repository are exercised.
func testRouter(t *testing.T, checks map[string]db.CheckFunc) *echo.Echo {
	t.Helper()
	cfg := testConfig()
	logger := zerolog.Nop()
	m := metrics.New()
	mail := mailer.New(mailer.NewTemplateEngine(), &mailer.RecordingSender{}, "orders@test")
	svc := newServices(cfg, nil, nil, mail, m, logger)
	return newRouter(cfg, svc, nil, websocket.NewHub(logger), m, checks, logger)
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsPublic(t *testing.T) {
	e := testRouter(t, nil)
	rec := serve(e, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected security headers on every response")
	}
}

func TestRouter_Readiness(t *testing.T) {
	e := testRouter(t, map[string]db.CheckFunc{
		"database":   func(context.Context) error { return nil },
		"mail_queue": func(context.Context) error { return errors.New("channel closed") },
	})
	rec := serve(e, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a failing check, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "channel closed") {
		t.Errorf("expected failing check in body, got %s", rec.Body.String())
	}
}

func TestRouter_MetricsIsPublic(t *testing.T) {
	e := testRouter(t, nil)
	serve(e, http.MethodGet, "/health")
	rec := serve(e, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_request_duration_seconds") {
		t.Errorf("expected request histogram in metrics output")
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	e := testRouter(t, nil)
	for _, path := range []string{"/api/v1/vendors", "/api/v1/notifications", "/api/v1/reports/measures"} {
		rec := serve(e, http.MethodGet, path)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestRouter_OrderLinkSkipsBearerAuth(t *testing.T) {
	e := testRouter(t, nil)
	rec := serve(e, http.MethodGet, "/orders/confirm?token=garbage")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad link token, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Errorf("expected link error page, got %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/confirm", strings.NewReader("token=garbage"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected POST /orders/confirm to reach the link handler, got %d", rec.Code)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "core", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "reporting_indexes"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2026-03-01 09:30:00") {
		t.Errorf("unexpected applied row: %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("unexpected pending row: %q", lines[3])
	}
}

func TestSeedCmd_Defaults(t *testing.T) {
	cmd := seedCmd()
	if v, _ := cmd.Flags().GetInt("vendors"); v != 3 {
		t.Errorf("expected 3 vendors by default, got %d", v)
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v != 1 {
		t.Errorf("expected seed 1 by default, got %d", v)
	}
}
