package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/persiamall/storefront/pkg/config"
)

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(envHeader) != "dev" {
		t.Fatalf("expected env header")
	}
}

func TestHealthReadyPingsDependencies(t *testing.T) {
	db, redis := &stubPinger{}, &stubPinger{}

	resp := httptest.NewRecorder()
	HealthReady(testConfig(), db, redis, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if db.calls != 1 || redis.calls != 1 {
		t.Fatalf("expected both dependencies pinged, got db=%d redis=%d", db.calls, redis.calls)
	}
}

func TestHealthReadyReportsFailure(t *testing.T) {
	db, redis := &stubPinger{}, &stubPinger{err: errors.New("connection refused")}

	resp := httptest.NewRecorder()
	HealthReady(testConfig(), db, redis, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
