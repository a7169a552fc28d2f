package gateway

import (
	"context"
	"log/slog"
)

// LogSender writes outbound chat to the log instead of the chzzk API. Used
// when no bot access token is configured, which keeps local development
// working without credentials.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendChat(_ context.Context, channelID, message string) error {
	s.logger.Info("chat send (dry run)", "channel_id", channelID, "message", message)
	return nil
}
