package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/internal/poller"
	"github.com/yameens/trumpdump/pkg/logger"
)

type AdminHandler struct {
	poller *poller.Poller
	bus    *events.Bus
}

func NewAdminHandler(p *poller.Poller, bus *events.Bus) *AdminHandler {
	return &AdminHandler{poller: p, bus: bus}
}

// APIKeyMiddleware guards the admin group. With no key configured the
// endpoints stay open for local development.
func APIKeyMiddleware(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey != "" && c.Get("X-API-Key") != apiKey {
			logger.Warn("Admin request rejected",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid or missing API key",
			})
		}
		return c.Next()
	}
}

// TriggerPoll requests an immediate poll tick.
func (h *AdminHandler) TriggerPoll(c *fiber.Ctx) error {
	triggered := h.poller.TriggerNow()
	if !triggered {
		logger.Info("Manual poll trigger coalesced with pending trigger")
	}
	return c.JSON(fiber.Map{
		"triggered": triggered,
	})
}

func (h *AdminHandler) SchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(h.poller.Status())
}

func (h *AdminHandler) EventsStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"subscribers": h.bus.SubscriberCount(),
	})
}

// PublishTestEvent pushes a synthetic notification through the bus so
// stream clients can be verified end to end.
func (h *AdminHandler) PublishTestEvent(c *fiber.Ctx) error {
	vertical := "test"
	conf := 0.99

	h.bus.Publish(&events.Notification{
		ID:              -1,
		PostID:          -1,
		RelevanceScore:  100,
		TopVertical:     &vertical,
		TopVerticalConf: &conf,
		BaseCaseSummary: "Test event",
	})

	return c.JSON(fiber.Map{
		"published":   true,
		"subscribers": h.bus.SubscriberCount(),
	})
}
