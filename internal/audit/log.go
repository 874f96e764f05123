package audit

import (
	"context"

	"github.com/dropDatabas3/credstart/internal/observability/logger"
)

// LogEmitter writes events to the structured log instead of a stream.
// Dev/test only; it gives no durability guarantee.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, ev Event) error {
	logger.From(ctx).Info("audit event",
		logger.Event(ev.Name),
		logger.Subject(ev.Subject),
		logger.SessionID(ev.SessionID),
		logger.JourneyID(ev.JourneyID),
		logger.String("component_id", ev.ComponentID),
		logger.String("timestamp", ev.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")),
	)
	return nil
}
