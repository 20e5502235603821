package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/pkg/logger"
)

// WebSocketHandler mirrors the SSE stream over a websocket for clients that
// cannot use EventSource. The feed is one-way: inbound messages are read
// only to detect disconnects.
type WebSocketHandler struct {
	bus *events.Bus
}

func NewWebSocketHandler(bus *events.Bus) *WebSocketHandler {
	return &WebSocketHandler{bus: bus}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	id, ch := h.bus.Subscribe()
	defer func() {
		h.bus.Unsubscribe(id)
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("subscriber_id", id))
	}()

	logger.Info("WebSocket connection established", zap.String("subscriber_id", id))

	err := c.WriteJSON(map[string]interface{}{
		"type":        "connected",
		"subscribers": h.bus.SubscriberCount(),
	})
	if err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			err := c.WriteJSON(map[string]interface{}{
				"type":     "analysis",
				"analysis": n,
			})
			if err != nil {
				logger.Debug("Failed to write to websocket", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
