package notifier

import (
	"context"
	"log/slog"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// LogSender writes alerts to the service log.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, event models.CorrelatedEvent) error {
	s.logger.Info("correlation alert",
		slog.String("correlation_id", event.ID),
		slog.String("description", event.Description),
		slog.Float64("confidence", event.ConfidenceScore),
	)
	s.logger.Debug("correlation alert message", slog.String("message", RenderMessage(event)))
	return nil
}
