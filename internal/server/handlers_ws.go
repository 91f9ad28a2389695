package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers connect from arbitrary dashboard origins
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WSConnectionsRejected.WithLabelValues(string(reason)).Inc()
		metrics.WSConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("rejecting websocket connection", "ip", ip, "reason", string(reason))
		return c.JSON(429, map[string]string{"error": "too many connections"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WSConnectionsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	metrics.WSConnectionsTotal.WithLabelValues("success").Inc()

	id := s.hub.Attach(conn)

	// Read pump - blocks until the connection closes
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.HandleMessage(id, data)
	}

	s.hub.Detach(id)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
