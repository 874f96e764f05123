package registry

import "context"

// StaticStore serves registry entries from an in-memory map loaded at
// startup. Used for dev and tests; production points at postgres.
type StaticStore struct {
	clients map[string]RegisteredClient
}

// NewStaticStore indexes the given entries by client id.
func NewStaticStore(entries []RegisteredClient) *StaticStore {
	m := make(map[string]RegisteredClient, len(entries))
	for _, e := range entries {
		m[e.ClientID] = e
	}
	return &StaticStore{clients: m}
}

func (s *StaticStore) Lookup(_ context.Context, clientID string) (*RegisteredClient, error) {
	rc, ok := s.clients[clientID]
	if !ok || rc.Issuer == "" {
		return nil, ErrNotFound
	}
	out := rc
	return &out, nil
}

func (s *StaticStore) Ping(context.Context) error { return nil }
