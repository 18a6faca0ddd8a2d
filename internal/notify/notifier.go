// Package notify pushes terminal session transitions to external channels.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/engine"
)

// SlackAPI abstracts the subset of the Slack client used by SlackNotifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier posts a summary message to a Slack channel whenever a
// session reaches a terminal state. Delivery is best-effort: a failed post
// is logged, never surfaced to the controller.
type SlackNotifier struct {
	api     SlackAPI
	channel string
}

// Compile-time interface check.
var _ engine.Notifier = (*SlackNotifier)(nil) //nolint:gochecknoglobals // compile-time check

// NewSlackNotifier creates a SlackNotifier posting to the given channel.
func NewSlackNotifier(api SlackAPI, channel string) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel}
}

// SessionEnded posts the terminal-state summary for a session.
func (n *SlackNotifier) SessionEnded(ctx context.Context, session *domain.Session) {
	text := formatSessionEnded(session)

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Str("status", string(session.Status)).
			Msg("slack notification failed")
	}
}

func formatSessionEnded(s *domain.Session) string {
	switch s.Status {
	case domain.SessionCompleted:
		return fmt.Sprintf("Session %q completed: %d answers, $%.4f spent.",
			s.Title, len(s.Results), s.CostAccumulated)
	case domain.SessionCancelled:
		if s.CancelReason == domain.CancelReasonCostLimitReached {
			return fmt.Sprintf("Session %q stopped at its cost ceiling ($%.4f of $%.4f); %d partial answers kept.",
				s.Title, s.CostAccumulated, s.CostCeiling, len(s.Results))
		}
		return fmt.Sprintf("Session %q cancelled; %d answers kept.", s.Title, len(s.Results))
	case domain.SessionFailed:
		return fmt.Sprintf("Session %q failed: %s", s.Title, s.Error)
	default:
		return fmt.Sprintf("Session %q ended with status %s.", s.Title, s.Status)
	}
}
