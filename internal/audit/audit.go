// Package audit appends immutable journey-milestone events to a durable
// stream. Delivery is at-least-once and nothing here deduplicates; the
// pipeline avoids duplicate start events by only emitting for sessions it
// created itself, never for ones it found.
package audit

import (
	"context"
	"time"
)

// EventCRIStart marks the start of an async credential-issuance journey.
const EventCRIStart = "DCMAW_ASYNC_CRI_START"

// Event is one audit record. Events are append-only: never mutated or
// deleted by this service.
type Event struct {
	Name        string    `json:"event_name"`
	Subject     string    `json:"sub"`
	SessionID   string    `json:"session_id"`
	JourneyID   string    `json:"govuk_signin_journey_id"`
	ComponentID string    `json:"component_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// Emitter appends events to the audit transport.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}
