package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/events"
)

// publishEvent sends a domain event after the change is committed. Failures are only logged.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType string, data interface{}) {
	if publisher == nil {
		return
	}

	event := events.NewEvent(eventType, data)
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event", "type", eventType, "event_id", event.ID, "error", err)
	}
}

// clockIn returns a clock reporting the current time in loc
func clockIn(loc *time.Location) func() time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}
