package credential

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/credstart/internal/audit"
	"github.com/dropDatabas3/credstart/internal/registry"
	"github.com/dropDatabas3/credstart/internal/session"
	"github.com/dropDatabas3/credstart/internal/token"
)

const (
	testIssuer   = "https://issuer.example"
	testClientID = "client-1"
)

// --- fakes -----------------------------------------------------------------

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(context.Context, string, string) error {
	f.calls++
	return f.err
}

type fakeRegistry struct {
	client *registry.RegisteredClient
	err    error
	calls  int
}

func (f *fakeRegistry) Lookup(context.Context, string) (*registry.RegisteredClient, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeRegistry) Ping(context.Context) error { return nil }

type fakeSessions struct {
	inner     session.Store
	findErr   error
	createErr error
	findCalls int
}

func (f *fakeSessions) FindActive(ctx context.Context, subject string) (*session.Session, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.inner.FindActive(ctx, subject)
}

func (f *fakeSessions) Create(ctx context.Context, p session.CreateParams) (*session.Session, bool, error) {
	if f.createErr != nil {
		return nil, false, f.createErr
	}
	return f.inner.Create(ctx, p)
}

func (f *fakeSessions) Ping(context.Context) error { return nil }

type fakeAudit struct {
	err    error
	events []audit.Event
}

func (f *fakeAudit) Emit(_ context.Context, e audit.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

// --- fixtures --------------------------------------------------------------

type fixture struct {
	svc      Service
	verifier *fakeVerifier
	registry *fakeRegistry
	sessions *fakeSessions
	audit    *fakeAudit
}

func newFixture(t *testing.T, mutate ...func(*fixture)) *fixture {
	t.Helper()
	f := &fixture{
		verifier: &fakeVerifier{},
		registry: &fakeRegistry{client: &registry.RegisteredClient{
			ClientID: testClientID,
			Issuer:   testIssuer,
		}},
		sessions: &fakeSessions{inner: session.NewMemoryStore(time.Hour)},
		audit:    &fakeAudit{},
	}
	for _, m := range mutate {
		m(f)
	}
	f.svc = NewService(Deps{
		Decoder:      &token.Decoder{Issuer: testIssuer},
		Verifier:     f.verifier,
		Registry:     f.registry,
		Sessions:     f.sessions,
		Audit:        f.audit,
		SigningKeyID: "sign-key-1",
		ComponentID:  testIssuer,
	})
	return f
}

func bearer(t *testing.T, mutate ...func(jwtv5.MapClaims)) string {
	t.Helper()
	claims := jwtv5.MapClaims{
		"iss":       testIssuer,
		"client_id": testClientID,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	for _, m := range mutate {
		m(claims)
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return "Bearer " + s
}

func body(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	m := map[string]any{
		"sub":                     "subject-1",
		"client_id":               testClientID,
		"state":                   "abc",
		"govuk_signin_journey_id": "journey-1",
	}
	for k, v := range overrides {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

// --- tests -----------------------------------------------------------------

func TestProcess_MalformedAuthHeaderShortCircuits(t *testing.T) {
	headers := []string{
		"",
		"Basic abc",
		"Bearer abc def",
		"Bearer ",
	}

	for _, h := range headers {
		t.Run("header "+h, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Process(context.Background(), h, body(t, nil))
			assert.ErrorIs(t, err, ErrAuthHeaderInvalid)
			assert.Zero(t, f.verifier.calls, "verifier must not run")
			assert.Zero(t, f.registry.calls, "registry must not run")
			assert.Zero(t, f.sessions.findCalls, "session store must not run")
			assert.Empty(t, f.audit.events)
		})
	}
}

func TestProcess_InvalidClaims(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(jwtv5.MapClaims)
	}{
		{"expired", func(c jwtv5.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"wrong issuer", func(c jwtv5.MapClaims) { c["iss"] = "https://evil.example" }},
		{"missing client_id", func(c jwtv5.MapClaims) { delete(c, "client_id") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Process(context.Background(), bearer(t, tc.mutate), body(t, nil))
			var ce *ClaimsError
			require.ErrorAs(t, err, &ce)
			assert.NotEmpty(t, ce.Reason)
			assert.Zero(t, f.registry.calls)
			assert.Zero(t, f.sessions.findCalls)
		})
	}
}

func TestProcess_BodyValidationShortCircuits(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]any
	}{
		{"missing sub", map[string]any{"sub": nil}},
		{"missing state", map[string]any{"state": nil}},
		{"missing client_id", map[string]any{"client_id": nil}},
		{"missing journey id", map[string]any{"govuk_signin_journey_id": nil}},
		{"client_id differs from token claim", map[string]any{"client_id": "client-2"}},
		{"redirect_uri not a URL", map[string]any{"redirect_uri": "not-a-url"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Process(context.Background(), bearer(t), body(t, tc.overrides))
			assert.ErrorIs(t, err, ErrBodyInvalid)
			assert.Zero(t, f.registry.calls, "registry must not run")
			assert.Zero(t, f.sessions.findCalls, "session store must not run")
		})
	}
}

func TestProcess_EmptyAndMalformedBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Process(context.Background(), bearer(t), nil)
	assert.ErrorIs(t, err, ErrBodyInvalid)

	_, err = f.svc.Process(context.Background(), bearer(t), []byte("{not json"))
	assert.ErrorIs(t, err, ErrBodyInvalid)
}

func TestProcess_SignatureFailure(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.verifier.err = errors.New("signature verification failed")
	})

	_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Zero(t, f.registry.calls, "forged token must not reach the registry")
	assert.Zero(t, f.sessions.findCalls)
}

func TestProcess_ClientUnrecognized(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.registry.err = registry.ErrNotFound
	})

	_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	assert.ErrorIs(t, err, ErrClientUnrecognized)
	assert.Zero(t, f.sessions.findCalls)
}

func TestProcess_RegistryUnavailable(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.registry.err = errors.New("parameter store timeout")
	})

	_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
	assert.Zero(t, f.sessions.findCalls)
}

func TestProcess_IssuerMismatch(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.registry.client.Issuer = "https://other-issuer.example"
	})

	_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	// Trust mismatches are deliberately indistinguishable from generic body
	// failures.
	assert.ErrorIs(t, err, ErrBodyInvalid)
	assert.Zero(t, f.sessions.findCalls)
}

func TestProcess_RedirectURICrossCheck(t *testing.T) {
	const registered = "https://rp.example/callback"

	t.Run("mismatch fails", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) { f.registry.client.RedirectURI = registered })
		_, err := f.svc.Process(context.Background(), bearer(t),
			body(t, map[string]any{"redirect_uri": "https://attacker.example/cb"}))
		assert.ErrorIs(t, err, ErrBodyInvalid)
	})

	t.Run("match passes", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) { f.registry.client.RedirectURI = registered })
		out, err := f.svc.Process(context.Background(), bearer(t),
			body(t, map[string]any{"redirect_uri": registered}))
		require.NoError(t, err)
		assert.True(t, out.Created)
	})

	t.Run("absent passes", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) { f.registry.client.RedirectURI = registered })
		out, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
		require.NoError(t, err)
		assert.True(t, out.Created)
	})
}

func TestProcess_SessionStoreFailures(t *testing.T) {
	t.Run("lookup fails", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) { f.sessions.findErr = errors.New("store down") })
		_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
		assert.ErrorIs(t, err, ErrSessionLookup)
		assert.Empty(t, f.audit.events)
	})

	t.Run("create fails", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) { f.sessions.createErr = errors.New("store down") })
		_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
		assert.ErrorIs(t, err, ErrSessionCreate)
		assert.Empty(t, f.audit.events)
	})
}

func TestProcess_AuditFailureAfterCreation(t *testing.T) {
	f := newFixture(t, func(f *fixture) { f.audit.err = errors.New("queue unreachable") })

	_, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	assert.ErrorIs(t, err, ErrAuditEmit)

	// The session durably exists despite the error: a retry finds it and
	// succeeds without a duplicate start event.
	f.audit.err = nil
	out, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Empty(t, f.audit.events)
}

func TestProcess_Idempotence(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "subject-1", first.Subject)

	second, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.Subject, second.Subject)

	require.Len(t, f.audit.events, 1, "exactly one audit event across both calls")
}

func TestProcess_HappyPath(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Process(context.Background(), bearer(t), body(t, nil))
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, "subject-1", out.Subject)
	assert.NotEmpty(t, out.SessionID)

	require.Len(t, f.audit.events, 1)
	ev := f.audit.events[0]
	assert.Equal(t, audit.EventCRIStart, ev.Name)
	assert.Equal(t, "subject-1", ev.Subject)
	assert.Equal(t, out.SessionID, ev.SessionID)
	assert.Equal(t, "journey-1", ev.JourneyID)
	assert.Equal(t, testIssuer, ev.ComponentID)
	assert.False(t, ev.Timestamp.IsZero())

	// The created session is bound to the token's issuer.
	sess, err := f.sessions.inner.FindActive(context.Background(), "subject-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, testIssuer, sess.Issuer)
}

func TestProcess_LostRaceBehavesLikeFound(t *testing.T) {
	f := newFixture(t)

	// Seed the winner directly in the store, then make FindActive miss so
	// Process takes the create path and loses the conditional write.
	winner, created, err := f.sessions.inner.Create(context.Background(), session.CreateParams{
		Subject: "subject-1",
		Issuer:  testIssuer,
	})
	require.NoError(t, err)
	require.True(t, created)

	raced := &racingSessions{inner: f.sessions.inner}
	svc := NewService(Deps{
		Decoder:      &token.Decoder{Issuer: testIssuer},
		Verifier:     f.verifier,
		Registry:     f.registry,
		Sessions:     raced,
		Audit:        f.audit,
		SigningKeyID: "sign-key-1",
		ComponentID:  testIssuer,
	})

	out, err := svc.Process(context.Background(), bearer(t), body(t, nil))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, winner.ID, out.SessionID)
	assert.Empty(t, f.audit.events, "loser must not emit an audit event")
}

// racingSessions reports no active session on lookup, forcing Process into
// Create, which then observes the concurrent winner.
type racingSessions struct {
	inner session.Store
}

func (r *racingSessions) FindActive(context.Context, string) (*session.Session, error) {
	return nil, nil
}

func (r *racingSessions) Create(ctx context.Context, p session.CreateParams) (*session.Session, bool, error) {
	return r.inner.Create(ctx, p)
}

func (r *racingSessions) Ping(context.Context) error { return nil }
