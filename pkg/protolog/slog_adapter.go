package protolog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger, at Debug level.
// Useful during development to see protocol events on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("kind", event.Kind.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}
	if event.Size != 0 {
		attrs = append(attrs, slog.Int("size", event.Size))
	}
	if event.Truncated {
		attrs = append(attrs, slog.Bool("truncated", event.Truncated))
	}
	if event.Err != "" {
		attrs = append(attrs, slog.String("error", event.Err))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "transport", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
