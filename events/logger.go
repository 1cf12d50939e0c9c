package events

import (
	"context"
	"log/slog"

	"github.com/aponysus/aegis/classify"
)

// LogTo returns a handler that mirrors events into l as structured records.
// Hosts attach it with SubscribeAll; the core itself never logs.
func LogTo(l *slog.Logger) Handler {
	return func(ev Event) {
		attrs := []any{"event", ev.Name, "service_key", ev.ServiceKey}
		if e := ev.Error; e != nil {
			attrs = append(attrs,
				"error_id", e.ID,
				"kind", string(e.Kind),
				"severity", string(e.Severity),
				"attempt", e.Context.Attempt,
				"message", e.Message,
			)
		}
		l.Log(context.Background(), levelFor(ev), "resilience event", attrs...)
	}
}

func levelFor(ev Event) slog.Level {
	switch ev.Name {
	case EventBreakerOpened:
		return slog.LevelError
	case EventRetry, EventBreakerClosed, EventRecovery:
		return slog.LevelInfo
	default:
		if ev.Error != nil && (ev.Error.Severity == classify.SeverityHigh || ev.Error.Severity == classify.SeverityCritical) {
			return slog.LevelError
		}
		return slog.LevelWarn
	}
}
