// Package credential implements the request-validation and
// session-initiation pipeline behind POST /async/credential.
//
// The pipeline is strictly linear: bearer extraction, claim validation,
// body validation, signature verification, registry resolution, trust
// cross-checks, idempotent session creation, audit emission. Each stage
// consumes the previous stage's validated output and the first failure is
// terminal. Nothing is persisted until every check has passed.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dropDatabas3/credstart/internal/audit"
	dto "github.com/dropDatabas3/credstart/internal/http/dto/credential"
	"github.com/dropDatabas3/credstart/internal/metrics"
	"github.com/dropDatabas3/credstart/internal/observability/logger"
	"github.com/dropDatabas3/credstart/internal/registry"
	"github.com/dropDatabas3/credstart/internal/session"
	"github.com/dropDatabas3/credstart/internal/token"
)

// Terminal pipeline failures. The controller maps these onto the response
// contract; the operational detail stays in the logs.
var (
	ErrAuthHeaderInvalid   = errors.New("authorization header invalid")
	ErrBodyInvalid         = errors.New("request body validation failed")
	ErrSignatureInvalid    = errors.New("token signature invalid")
	ErrClientUnrecognized  = errors.New("supplied client not recognised")
	ErrRegistryUnavailable = errors.New("client registry unavailable")
	ErrSessionLookup       = errors.New("session lookup failed")
	ErrSessionCreate       = errors.New("session creation failed")
	ErrAuditEmit           = errors.New("audit event emission failed")
)

// ClaimsError is a claim-validation failure. Its reason is surfaced to the
// caller as error_description on the invalid_token response.
type ClaimsError struct {
	Reason string
}

func (e *ClaimsError) Error() string { return e.Reason }

// Outcome is a successful pipeline run.
type Outcome struct {
	Subject   string
	SessionID string
	// Created is false when an active session already existed and the run
	// short-circuited without creating one or emitting an audit event.
	Created bool
}

// Verifier is the signature-verification stage's collaborator.
type Verifier interface {
	Verify(ctx context.Context, keyID, encodedJWT string) error
}

// Service runs the pipeline.
type Service interface {
	Process(ctx context.Context, authorizationHeader string, body []byte) (*Outcome, error)
}

// Deps are the service's collaborators, constructed once at process start
// and passed in explicitly.
type Deps struct {
	Decoder  *token.Decoder
	Verifier Verifier
	Registry registry.Store
	Sessions session.Store
	Audit    audit.Emitter

	// SigningKeyID names the key the bearer token must be signed with.
	SigningKeyID string
	// ComponentID is recorded on audit events; it equals the trusted issuer.
	ComponentID string

	Now func() time.Time
}

type service struct {
	decoder      *token.Decoder
	verifier     Verifier
	registry     registry.Store
	sessions     session.Store
	audit        audit.Emitter
	signingKeyID string
	componentID  string
	validate     *validator.Validate
	now          func() time.Time
}

// NewService builds the pipeline service.
func NewService(d Deps) Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		decoder:      d.Decoder,
		verifier:     d.Verifier,
		registry:     d.Registry,
		sessions:     d.Sessions,
		audit:        d.Audit,
		signingKeyID: d.SigningKeyID,
		componentID:  d.ComponentID,
		validate:     validator.New(),
		now:          now,
	}
}

func (s *service) Process(ctx context.Context, authorizationHeader string, body []byte) (*Outcome, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("CredentialService.Process"))

	// 1. Bearer extraction. Fails before anything downstream is touched.
	bearer, err := token.BearerFromHeader(authorizationHeader)
	if err != nil {
		log.Warn("authentication header invalid",
			logger.Event("AUTHENTICATION_HEADER_INVALID"), logger.Err(err))
		metrics.StageFailure("auth_header")
		return nil, ErrAuthHeaderInvalid
	}

	// 2. Claim validation. Structure and claims only; the signature is not
	// trusted yet.
	decoded, err := s.decoder.Decode(ctx, bearer)
	if err != nil {
		log.Warn("jwt claim invalid",
			logger.Event("JWT_CLAIM_INVALID"), logger.Err(err))
		metrics.StageFailure("claims")
		return nil, &ClaimsError{Reason: err.Error()}
	}
	claims := decoded.Claims
	log = log.With(logger.ClientID(claims.ClientID))

	// 3. Body validation, including the token/body client_id cross-check.
	req, err := s.parseBody(body, claims.ClientID)
	if err != nil {
		log.Warn("request body invalid",
			logger.Event("REQUEST_BODY_INVALID"), logger.Err(err))
		metrics.StageFailure("body")
		return nil, ErrBodyInvalid
	}

	// 4. Signature verification, before any registry lookup or store write
	// so a forged token cannot trigger either.
	if err := s.verifier.Verify(ctx, s.signingKeyID, decoded.EncodedJWT); err != nil {
		log.Warn("token signature invalid",
			logger.Event("TOKEN_SIGNATURE_INVALID"), logger.KeyID(s.signingKeyID), logger.Err(err))
		metrics.StageFailure("signature")
		return nil, ErrSignatureInvalid
	}

	// 5. Registry resolution. Unknown client and unreachable registry are
	// different failures with different responses.
	client, err := s.registry.Lookup(ctx, claims.ClientID)
	if errors.Is(err, registry.ErrNotFound) {
		log.Warn("client credentials invalid",
			logger.Event("CLIENT_CREDENTIALS_INVALID"), logger.Err(err))
		metrics.StageFailure("registry")
		return nil, ErrClientUnrecognized
	}
	if err != nil {
		log.Error("error retrieving registered client",
			logger.Event("ERROR_RETRIEVING_REGISTERED_CLIENT"), logger.Err(err))
		metrics.StageFailure("registry")
		return nil, ErrRegistryUnavailable
	}

	// 6. Trust cross-checks against the registry record. Mismatches are
	// reported as generic body-validation failures, not a distinct code.
	if claims.Issuer != client.Issuer {
		log.Warn("request body invalid",
			logger.Event("REQUEST_BODY_INVALID"),
			logger.Err(errors.New("issuer does not match value from client registry")))
		metrics.StageFailure("trust")
		return nil, ErrBodyInvalid
	}
	if req.RedirectURI != "" && req.RedirectURI != client.RedirectURI {
		log.Warn("request body invalid",
			logger.Event("REQUEST_BODY_INVALID"),
			logger.Err(errors.New("redirect_uri does not match value from client registry")))
		metrics.StageFailure("trust")
		return nil, ErrBodyInvalid
	}

	log = log.With(logger.Subject(req.Subject), logger.JourneyID(req.JourneyID))

	// 7. Idempotent session establishment. An active session short-circuits
	// the run: no new session, no audit event.
	existing, err := s.sessions.FindActive(ctx, req.Subject)
	if err != nil {
		log.Error("error retrieving session",
			logger.Event("ERROR_RETRIEVING_SESSION"), logger.Err(err))
		metrics.StageFailure("session_lookup")
		return nil, ErrSessionLookup
	}
	if existing != nil {
		log.Info("completed", logger.Event("COMPLETED"), logger.SessionID(existing.ID))
		metrics.SessionReused()
		metrics.StageSuccess("session_reused")
		return &Outcome{Subject: req.Subject, SessionID: existing.ID, Created: false}, nil
	}

	sess, created, err := s.sessions.Create(ctx, session.CreateParams{
		Subject:     req.Subject,
		Issuer:      claims.Issuer,
		ClientID:    req.ClientID,
		State:       req.State,
		JourneyID:   req.JourneyID,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		log.Error("error creating session",
			logger.Event("ERROR_CREATING_SESSION"), logger.Err(err))
		metrics.StageFailure("session_create")
		return nil, ErrSessionCreate
	}
	log = log.With(logger.SessionID(sess.ID))

	// A concurrent duplicate lost the store's conditional write: the winner
	// emitted (or will emit) the audit event, so behave exactly like the
	// found-active path.
	if !created {
		log.Info("completed", logger.Event("COMPLETED"))
		metrics.SessionReused()
		metrics.StageSuccess("session_reused")
		return &Outcome{Subject: req.Subject, SessionID: sess.ID, Created: false}, nil
	}
	metrics.SessionCreated()

	// 8. Audit emission, only for sessions this run created. A failure here
	// is a server error even though the session now durably exists; a retry
	// will find the active session and succeed without a duplicate event.
	if err := s.audit.Emit(ctx, audit.Event{
		Name:        audit.EventCRIStart,
		Subject:     req.Subject,
		SessionID:   sess.ID,
		JourneyID:   req.JourneyID,
		ComponentID: s.componentID,
		Timestamp:   s.now().UTC(),
	}); err != nil {
		log.Error("error writing audit event",
			logger.Event("ERROR_WRITING_AUDIT_EVENT"), logger.Err(err))
		metrics.StageFailure("audit")
		return nil, ErrAuditEmit
	}
	metrics.AuditEventEmitted()

	log.Info("completed", logger.Event("COMPLETED"))
	metrics.StageSuccess("session_created")
	return &Outcome{Subject: req.Subject, SessionID: sess.ID, Created: true}, nil
}

// parseBody decodes and validates the request body. tokenClientID is the
// access token's client_id claim; a body naming a different client is
// rejected to defend against token/body substitution.
func (s *service) parseBody(body []byte, tokenClientID string) (*dto.Request, error) {
	if len(body) == 0 {
		return nil, errors.New("missing request body")
	}
	var req dto.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON in request body: %w", err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("request body failed validation: %w", err)
	}
	if req.ClientID != tokenClientID {
		return nil, errors.New("client_id in request body does not match value in access_token")
	}
	return &req, nil
}
