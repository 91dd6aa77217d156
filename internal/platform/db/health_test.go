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

func runHealth(t *testing.T, check Check) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), rec)

	if err := HealthHandler(check)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec, body
}

func TestHealthHandler_NoPing(t *testing.T) {
	rec, body := runHealth(t, Check{Backend: "file"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "healthy" || body["backend"] != "file" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealthHandler_PingFails(t *testing.T) {
	rec, body := runHealth(t, Check{
		Backend: "redis",
		Ping:    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body["status"] != "unhealthy" || body["error"] != "connection refused" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealthHandler_WithStats(t *testing.T) {
	rec, body := runHealth(t, Check{
		Backend: "postgres",
		Ping:    func(ctx context.Context) error { return nil },
		Stats:   func() interface{} { return &PoolStats{TotalConns: 3, MaxConns: 20} },
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	pool, ok := body["pool"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected pool stats in body, got %v", body)
	}
	if pool["total_conns"] != float64(3) || pool["max_conns"] != float64(20) {
		t.Errorf("unexpected pool stats %v", pool)
	}
}
