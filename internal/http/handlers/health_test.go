package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/identityhub/internal/http/handlers"
)

func TestReadyz(t *testing.T) {
	ok := handlers.ReadinessCheck{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := handlers.ReadinessCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("dial tcp: refused") }}

	tests := []struct {
		name       string
		checks     []handlers.ReadinessCheck
		draining   bool
		wantStatus int
		wantBody   string
	}{
		{"all up", []handlers.ReadinessCheck{ok}, false, http.StatusOK, `"ready"`},
		{"no checks", nil, false, http.StatusOK, `"ready"`},
		{"one down", []handlers.ReadinessCheck{ok, down}, false, http.StatusServiceUnavailable, `"redis":"unavailable"`},
		{"shutting down", []handlers.ReadinessCheck{ok}, true, http.StatusServiceUnavailable, `"shutting_down"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(tt.checks...)
			if tt.draining {
				h.MarkShuttingDown()
			}
			r := setupRouter(http.MethodGet, "/readyz", h.Readyz)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
			if strings.Contains(w.Body.String(), "refused") {
				t.Fatalf("ping error leaked: %s", w.Body.String())
			}
		})
	}
}

func TestHealth_ReportsOK(t *testing.T) {
	h := handlers.NewHealthHandler()
	r := setupRouter(http.MethodGet, "/health", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"OK"`) {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
