package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StreamEmitter appends events to a redis stream with XADD. The stream is
// the durable queue boundary; consumers read it with their own consumer
// groups and must tolerate duplicates.
type StreamEmitter struct {
	client *redis.Client
	stream string
}

// NewStreamEmitter wires an emitter onto an existing redis client.
func NewStreamEmitter(client *redis.Client, stream string) *StreamEmitter {
	return &StreamEmitter{client: client, stream: stream}
}

func (e *StreamEmitter) Emit(ctx context.Context, ev Event) error {
	err := e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]any{
			"event_name":              ev.Name,
			"sub":                     ev.Subject,
			"session_id":              ev.SessionID,
			"govuk_signin_journey_id": ev.JourneyID,
			"component_id":            ev.ComponentID,
			"timestamp":               strconv.FormatInt(ev.Timestamp.UnixMilli(), 10),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("audit: append %s to %s: %w", ev.Name, e.stream, err)
	}
	return nil
}
