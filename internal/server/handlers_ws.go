package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from another origin
	},
}

func (s *Server) handleDashboardSocket(c echo.Context) error {
	channelID := c.Param("channelID")
	if channelID == "" {
		return apperrors.ValidationError("missing channel id")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	// Registration activates the channel session through the hub's
	// first-connect hook and replays current state to this client.
	if err := s.hub.Register(channelID, conn); err != nil {
		s.logger.Warn("Failed to register dashboard client", "channel_id", channelID, "error", err)
		return nil
	}

	// Read pump. Dashboards never send application messages; this only
	// notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(channelID, conn)

	return nil
}
