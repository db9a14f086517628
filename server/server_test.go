package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/server/middleware"
)

type fakeChecker observability.Health

func (f fakeChecker) CheckHealth(context.Context) observability.Health { return observability.Health(f) }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{Host: "127.0.0.1"}, logger.NewNop())
	s.ApplyMiddleware(nil)
	return s
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name     string
		checkers []observability.HealthChecker
		want     int
		status   string
	}{
		{"no components", nil, http.StatusOK, "up"},
		{"degraded stays 200", []observability.HealthChecker{
			fakeChecker{Name: "database", Status: observability.HealthStatusUp},
			fakeChecker{Name: "redis", Status: observability.HealthStatusDegraded},
		}, http.StatusOK, "degraded"},
		{"down is 503", []observability.HealthChecker{
			fakeChecker{Name: "database", Status: observability.HealthStatusDown},
		}, http.StatusServiceUnavailable, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.RegisterHealth("viewkit", "0.1.0", tt.checkers...)

			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["status"] != tt.status || body["version"] != "0.1.0" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestServer_MiddlewareCoversRoutes(t *testing.T) {
	s := newTestServer(t)
	s.GinEngine().GET("/boom", func(*gin.Context) { panic("boom") })
	s.Handle("/raw/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected recovered panic as 500, got %d", rr.Code)
	}
	if rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("expected request id on gin route")
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/raw/x", http.NoBody))
	if rr.Code != http.StatusTeapot || rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Fatalf("expected mounted handler behind the chain, got %d", rr.Code)
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		want int
		code apperrors.ErrorCode
	}{
		{"app error", apperrors.NotFound("bookings", "7"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"wrapped app error", fmt.Errorf("load: %w", apperrors.ServiceUnavailable("database")), http.StatusServiceUnavailable, apperrors.ErrCodeServiceUnavailable},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, body.Error.Code)
			}
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	s := New(Config{Host: "127.0.0.1", Port: port}, logger.NewNop())
	s.ApplyMiddleware(nil)
	s.RegisterHealth("viewkit", "test")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/alive")
	if err != nil {
		t.Fatalf("GET /alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != middleware.DefaultMaxBodySize {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out of range port")
	}
	cfg.Port, cfg.IdleTimeout = 80, -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative timeout")
	}
}
