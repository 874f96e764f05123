package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in redis. Two keys per session, both carrying
// the session TTL so "active" is simply "key still present":
//
//	<prefix>:sub:<subject>  -> session id   (the uniqueness guard, SET NX)
//	<prefix>:id:<id>        -> session JSON
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore connects and pings the redis backend.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(rdb, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. Used by wiring when the
// client is shared with the audit emitter, and by tests.
func NewRedisStoreWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "credstart"
	}
	return &RedisStore{client: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) subKey(subject string) string { return s.prefix + ":sub:" + subject }
func (s *RedisStore) idKey(id string) string       { return s.prefix + ":id:" + id }

func (s *RedisStore) FindActive(ctx context.Context, subject string) (*Session, error) {
	id, err := s.client.Get(ctx, s.subKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id, subject)
}

func (s *RedisStore) Create(ctx context.Context, params CreateParams) (*Session, bool, error) {
	sess := &Session{
		ID:          uuid.NewString(),
		Subject:     params.Subject,
		Issuer:      params.Issuer,
		ClientID:    params.ClientID,
		State:       params.State,
		JourneyID:   params.JourneyID,
		RedirectURI: params.RedirectURI,
		CreatedAt:   s.now().UTC(),
	}

	// The subject index is the uniqueness guard: only one concurrent Create
	// for a subject wins the SET NX. The record is written before the guard
	// so a visible guard always points at a durable record; a write failure
	// at either step leaves nothing a retry could mistake for an active
	// session. Two attempts cover the window where the observed winner
	// expired between the claim and the read.
	for attempt := 0; attempt < 2; attempt++ {
		b, _ := json.Marshal(sess)
		if err := s.client.Set(ctx, s.idKey(sess.ID), b, s.ttl).Err(); err != nil {
			return nil, false, err
		}

		won, err := s.client.SetNX(ctx, s.subKey(params.Subject), sess.ID, s.ttl).Result()
		if err != nil {
			return nil, false, err
		}
		if won {
			return sess, true, nil
		}

		// Lost the guard; discard the unreferenced record and adopt the
		// winner's session.
		_ = s.client.Del(ctx, s.idKey(sess.ID)).Err()
		existing, err := s.FindActive(ctx, params.Subject)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, errors.New("session: could not claim subject slot")
}

// releaseGuard deletes the subject index only while it still points at the
// given session id, so a concurrent winner's guard is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (s *RedisStore) releaseGuard(ctx context.Context, subject, id string) {
	// Best effort: if this fails the guard lingers until the next read or
	// its TTL, whichever comes first.
	_ = releaseScript.Run(ctx, s.client, []string{s.subKey(subject)}, id).Err()
}

// load fetches the session record for id. Records are written before their
// guard and outlive it, so a guard without a record means the session is
// gone; release the guard and report no session so the subject can be
// created again.
func (s *RedisStore) load(ctx context.Context, id, subject string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.releaseGuard(ctx, subject, id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session: corrupt record for %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
