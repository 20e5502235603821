package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
)

type fakeScheduler struct{ running bool }

func (f fakeScheduler) Running() bool { return f.running }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		running    bool
		wantStatus string
	}{
		{"healthy", nil, true, "ok"},
		{"db down degrades but still answers", errors.New("closed"), true, "degraded"},
		{"scheduler stopped stays ok", nil, false, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&fakeStore{pingErr: tt.pingErr}, fakeScheduler{running: tt.running})

			app := fiber.New()
			app.Get("/health", h.Health)

			code, body := doRequest(t, app, "/health")
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.pingErr == nil, body["database_connected"])
			assert.Equal(t, tt.running, body["scheduler_running"])
		})
	}
}

func TestRoot(t *testing.T) {
	h := NewHealthHandler(&fakeStore{}, fakeScheduler{})

	app := fiber.New()
	app.Get("/", h.Root)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
