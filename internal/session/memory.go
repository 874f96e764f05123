package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store for dev and tests. go-cache's Add is
// the conditional write: it fails when the subject key is already present
// and not expired, which gives the same at-most-one-active guarantee as the
// redis SET NX path.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore builds a MemoryStore with the given session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
		now:   time.Now,
	}
}

func subKey(subject string) string { return "sub:" + subject }
func idKey(id string) string       { return "id:" + id }

func (s *MemoryStore) FindActive(_ context.Context, subject string) (*Session, error) {
	v, ok := s.cache.Get(subKey(subject))
	if !ok {
		return nil, nil
	}
	id := v.(string)
	if rec, ok := s.cache.Get(idKey(id)); ok {
		sess := rec.(Session)
		return &sess, nil
	}
	return &Session{ID: id, Subject: subject}, nil
}

func (s *MemoryStore) Create(ctx context.Context, params CreateParams) (*Session, bool, error) {
	sess := Session{
		ID:          uuid.NewString(),
		Subject:     params.Subject,
		Issuer:      params.Issuer,
		ClientID:    params.ClientID,
		State:       params.State,
		JourneyID:   params.JourneyID,
		RedirectURI: params.RedirectURI,
		CreatedAt:   s.now().UTC(),
	}

	// Add is the conditional write; a plain Set here could clobber a
	// concurrent winner that claimed the slot between the failed Add and
	// the expiry check, so always re-contend through Add.
	for s.cache.Add(subKey(params.Subject), sess.ID, s.ttl) != nil {
		existing, err := s.FindActive(ctx, params.Subject)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		// Slot expired between Add and the read; contend again.
	}

	s.cache.Set(idKey(sess.ID), sess, s.ttl)
	return &sess, true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
