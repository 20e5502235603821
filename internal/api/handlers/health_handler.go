package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const appVersion = "0.2.0"

// SchedulerStatus lets the health endpoint report poller state without
// depending on the poller package.
type SchedulerStatus interface {
	Running() bool
}

type HealthHandler struct {
	store     AnalysisStore
	scheduler SchedulerStatus
}

func NewHealthHandler(store AnalysisStore, scheduler SchedulerStatus) *HealthHandler {
	return &HealthHandler{store: store, scheduler: scheduler}
}

// Root is the bare liveness endpoint.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": appVersion,
		"time":    time.Now().Unix(),
	})
}

// Health reports component status. A broken database degrades the status
// but the endpoint itself always answers 200.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	dbConnected := h.store.Ping() == nil

	status := "ok"
	if !dbConnected {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":             status,
		"version":            appVersion,
		"database":           "sqlite",
		"database_connected": dbConnected,
		"scheduler_running":  h.scheduler.Running(),
	})
}
