package events

import (
	"context"
	"log/slog"

	"github.com/example/cario/internal/models"
)

// Sink receives session events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev models.Event) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, ev models.Event) error

func (f SinkFunc) Publish(ctx context.Context, ev models.Event) error { return f(ctx, ev) }

// Fanout delivers every event to each sink in order. A failing sink is logged
// and skipped so the remaining sinks still see the event.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out, logger: logger}
}

func (f *Fanout) Publish(ctx context.Context, ev models.Event) error {
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			f.logger.Warn("event sink failed", "type", ev.Type, "session_id", ev.SessionID, "error", err)
		}
	}
	return nil
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, models.Event) error { return nil })
