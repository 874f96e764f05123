package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// clockSkew is the leeway applied to exp/nbf checks.
const clockSkew = 30 * time.Second

// Claims are the validated contents of a bearer credential. Only the claims
// the pipeline acts on are surfaced.
type Claims struct {
	Issuer    string
	ClientID  string
	Subject   string
	ExpiresAt time.Time
}

// DecodedToken pairs the validated claims with the encoded JWT they came
// from. The encoded form is what gets signature-verified downstream.
type DecodedToken struct {
	EncodedJWT string
	Claims     Claims
}

// Decrypter is the slice of the key-management boundary needed to unwrap an
// encrypted credential.
type Decrypter interface {
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// Decoder decodes a bearer credential and validates its claims. It never
// checks signatures; callers must verify the returned EncodedJWT before
// trusting anything beyond claim-level validation.
type Decoder struct {
	// Issuer is the trust anchor the token's "iss" must equal.
	Issuer string

	// Decrypter and EncryptionKeyID enable the encrypted-credential path.
	// When Decrypter is nil only plain JWTs are accepted.
	Decrypter       Decrypter
	EncryptionKeyID string

	now func() time.Time
}

// Decode unwraps (when encrypted) and decodes the bearer credential, then
// validates the claim set.
func (d *Decoder) Decode(ctx context.Context, bearer string) (*DecodedToken, error) {
	encoded := bearer

	switch strings.Count(bearer, ".") {
	case 2:
		// compact JWT, nothing to unwrap
	case 4:
		if d.Decrypter == nil {
			return nil, errors.New("encrypted token not supported")
		}
		inner, err := d.unwrapJWE(ctx, bearer)
		if err != nil {
			return nil, err
		}
		encoded = inner
	default:
		return nil, errors.New("token is not a valid JWT or JWE")
	}

	claims, err := d.validateClaims(encoded)
	if err != nil {
		return nil, err
	}

	return &DecodedToken{EncodedJWT: encoded, Claims: *claims}, nil
}

// validateClaims parses the JWT without signature verification and checks
// the invariants the pipeline depends on: iss equals the trust anchor,
// client_id present, exp present and in the future, nbf honored.
func (d *Decoder) validateClaims(encoded string) (*Claims, error) {
	parser := jwtv5.NewParser()
	tok, _, err := parser.ParseUnverified(encoded, jwtv5.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	iss, _ := mc["iss"].(string)
	if iss == "" {
		return nil, errors.New("missing iss claim")
	}
	if d.Issuer != "" && iss != d.Issuer {
		return nil, errors.New("iss claim does not match registered issuer")
	}

	clientID, _ := mc["client_id"].(string)
	if clientID == "" {
		return nil, errors.New("missing client_id claim")
	}

	expf, ok := mc["exp"].(float64)
	if !ok {
		return nil, errors.New("missing exp claim")
	}
	exp := time.Unix(int64(expf), 0)
	if exp.Before(now.Add(-clockSkew)) {
		return nil, errors.New("token expired")
	}

	if nbff, ok := mc["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(clockSkew)) {
			return nil, errors.New("token not yet valid")
		}
	}

	sub, _ := mc["sub"].(string)

	return &Claims{
		Issuer:    iss,
		ClientID:  clientID,
		Subject:   sub,
		ExpiresAt: exp,
	}, nil
}
