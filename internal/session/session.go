// Package session owns the durable session records for in-flight credential
// issuance attempts. At most one active (unexpired) session exists per
// subject; the store itself enforces that with a conditional write keyed on
// subject, so concurrent duplicate requests cannot both create one. The
// orchestrator's find-then-create is only an optimization on top.
package session

import (
	"context"
	"time"
)

// Session is a subject's in-flight credential-issuance attempt. The ID is
// immutable once created.
type Session struct {
	ID          string    `json:"id"`
	Subject     string    `json:"sub"`
	Issuer      string    `json:"issuer"`
	ClientID    string    `json:"client_id"`
	State       string    `json:"state"`
	JourneyID   string    `json:"govuk_signin_journey_id"`
	RedirectURI string    `json:"redirect_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateParams carries everything a new session is bound to.
type CreateParams struct {
	Subject     string
	Issuer      string
	ClientID    string
	State       string
	JourneyID   string
	RedirectURI string
}

// Store finds and creates sessions.
type Store interface {
	// FindActive returns the unexpired session for subject, or nil when
	// there is none.
	FindActive(ctx context.Context, subject string) (*Session, error)

	// Create atomically creates a session for params.Subject unless an
	// active one already exists. The bool reports whether this call did the
	// creating; when false the returned session is the concurrent winner's.
	Create(ctx context.Context, params CreateParams) (*Session, bool, error)

	Ping(ctx context.Context) error
}
