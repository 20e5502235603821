package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/pkg/logger"
)

const keepaliveInterval = 30 * time.Second

type StreamHandler struct {
	bus *events.Bus
}

func NewStreamHandler(bus *events.Bus) *StreamHandler {
	return &StreamHandler{bus: bus}
}

// Stream is the Server-Sent Events endpoint. Clients get a connected event
// on open, an analysis event per relevant analysis, and a keepalive comment
// every 30 seconds. The connection ends when the client goes away or the
// bus shuts down.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		id, ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(id)

		connected, _ := json.Marshal(fiber.Map{
			"status":      "connected",
			"subscribers": h.bus.SubscriberCount(),
		})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		if err := w.Flush(); err != nil {
			return
		}

		logger.Info("Stream client connected", zap.String("subscriber_id", id))

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case n, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: analysis\ndata: %s\n\n", n.JSON())
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
			}

			if err := w.Flush(); err != nil {
				logger.Debug("Stream client disconnected", zap.String("subscriber_id", id))
				return
			}
		}
	}))

	return nil
}
