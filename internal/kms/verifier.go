package kms

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrSignatureInvalid is the single outcome for every verification failure.
// Transport errors, malformed key material and genuinely bad signatures all
// collapse into it so infrastructure detail never leaks into the
// authorization decision.
var ErrSignatureInvalid = errors.New("token signature verification failed")

// PublicKeyFetcher is the slice of the key-management boundary the verifier
// needs.
type PublicKeyFetcher interface {
	GetPublicKey(ctx context.Context, keyID string) ([]byte, error)
}

// Verifier checks JWT signatures against public key material held by the
// remote key-management service.
type Verifier struct {
	Keys PublicKeyFetcher
}

// Verify fetches the public key for keyID and verifies the ES256 signature
// on the encoded JWT. Claims are not revalidated here; that happened in an
// earlier stage.
func (v *Verifier) Verify(ctx context.Context, keyID, encodedJWT string) error {
	der, err := v.Keys.GetPublicKey(ctx, keyID)
	if err != nil {
		return errors.Join(ErrSignatureInvalid, err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return errors.Join(ErrSignatureInvalid, err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return errors.Join(ErrSignatureInvalid, errors.New("public key is not ECDSA"))
	}

	keyfunc := func(t *jwtv5.Token) (any, error) { return pub, nil }
	tok, err := jwtv5.Parse(encodedJWT, keyfunc,
		jwtv5.WithValidMethods([]string{"ES256"}),
		// Claim validation is stage 2's job; only the signature matters here.
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return ErrSignatureInvalid
	}
	return nil
}
