package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/engine"
)

// LogNotifier records terminal session transitions in the application log,
// so every session end is traceable even when no chat sink is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// Compile-time interface check.
var _ engine.Notifier = (*LogNotifier)(nil) //nolint:gochecknoglobals // compile-time check

// NewLogNotifier creates a LogNotifier writing to the given logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SessionEnded logs the terminal-state summary for a session.
func (n *LogNotifier) SessionEnded(_ context.Context, session *domain.Session) {
	evt := n.logger.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(session.Status)).
		Int("results", len(session.Results)).
		Float64("cost", session.CostAccumulated)
	if session.CancelReason != "" {
		evt = evt.Str("cancel_reason", session.CancelReason)
	}
	if session.Error != "" {
		evt = evt.Str("error", session.Error)
	}
	evt.Msg(formatSessionEnded(session))
}
