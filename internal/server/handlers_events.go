package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mugummy/chzzkbot/internal/domain"
	apperrors "github.com/mugummy/chzzkbot/internal/errors"
)

// handleChatEvent accepts one chat line from the relay and hands it to the
// channel's coordinator. Returns 202 immediately; dispatch is asynchronous.
func (s *Server) handleChatEvent(c echo.Context) error {
	var ev domain.ChatEvent
	if err := c.Bind(&ev); err != nil {
		return apperrors.ValidationError("malformed chat event")
	}
	if ev.ChannelID == "" || ev.ViewerID == "" {
		return apperrors.ValidationError("chat event needs channelId and viewerId")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Role == "" {
		ev.Role = domain.RoleViewer
	}

	sess, err := s.registry.Activate(c.Request().Context(), ev.ChannelID)
	if err != nil {
		return err
	}
	sess.HandleChat(ev)

	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleDonationEvent(c echo.Context) error {
	var ev domain.DonationEvent
	if err := c.Bind(&ev); err != nil {
		return apperrors.ValidationError("malformed donation event")
	}
	if ev.ChannelID == "" || ev.ViewerID == "" {
		return apperrors.ValidationError("donation event needs channelId and viewerId")
	}
	if ev.Amount <= 0 {
		return apperrors.ValidationError("donation amount must be positive")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	sess, err := s.registry.Activate(c.Request().Context(), ev.ChannelID)
	if err != nil {
		return err
	}
	sess.HandleDonation(ev)

	return c.NoContent(http.StatusAccepted)
}
