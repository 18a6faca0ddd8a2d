package notify

import (
	"context"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/engine"
)

// Fanout forwards a terminal transition to every registered sink.
type Fanout struct {
	sinks []engine.Notifier
}

// Compile-time interface check.
var _ engine.Notifier = (*Fanout)(nil) //nolint:gochecknoglobals // compile-time check

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...engine.Notifier) *Fanout {
	return &Fanout{sinks: sinks}
}

// SessionEnded notifies every sink. Sinks are independent; one failing or
// slow sink does not stop the others.
func (f *Fanout) SessionEnded(ctx context.Context, session *domain.Session) {
	for _, sink := range f.sinks {
		sink.SessionEnded(ctx, session)
	}
}
