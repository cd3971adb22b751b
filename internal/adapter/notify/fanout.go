// Package notify composes notifiers so the engine sees a single sink.
package notify

import (
	"context"

	"github.com/microfunc/microfunc/internal/core/port"
)

type fanout struct {
	sinks []port.Notifier
}

// NewFanout returns a Notifier that forwards every event to all sinks.
// Each sink handles its own failures; a slow or broken sink does not
// stop the others.
func NewFanout(sinks ...port.Notifier) port.Notifier {
	return &fanout{sinks: sinks}
}

func (f *fanout) Notify(ctx context.Context, eventType string, payload map[string]any) {
	for _, s := range f.sinks {
		s.Notify(ctx, eventType, payload)
	}
}
