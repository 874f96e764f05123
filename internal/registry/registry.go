// Package registry resolves client identifiers against the trusted client
// registry. Entries are the sole source of truth for issuer and
// redirect-target trust comparisons, so lookups are read-only and never
// cached: freshness takes precedence over latency.
package registry

import (
	"context"
	"errors"
)

var (
	// ErrNotFound covers both an absent entry and a malformed one; either
	// way the supplied client is not recognised.
	ErrNotFound = errors.New("registered client not found")
)

// RegisteredClient is a trust-registry record.
type RegisteredClient struct {
	ClientID    string
	Issuer      string
	RedirectURI string
}

// Store looks up registered clients. Implementations must return
// ErrNotFound for unknown or malformed entries; any other error means the
// registry itself is unavailable.
type Store interface {
	Lookup(ctx context.Context, clientID string) (*RegisteredClient, error)
	Ping(ctx context.Context) error
}
