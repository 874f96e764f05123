// Package token extracts and structurally validates the caller's bearer
// credential: Authorization header parsing, optional JWE unwrap via the
// key-management boundary, and claim validation against the configured
// trust anchor. Signature verification is a separate, later stage and
// deliberately does not happen here.
package token

import (
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

var (
	ErrNoAuthHeader = errors.New("no authentication header present")
	ErrNotBearer    = errors.New("invalid authentication header format - does not start with Bearer")
	ErrHeaderSpaces = errors.New("invalid authentication header format - contains spaces")
	ErrTokenMissing = errors.New("invalid authentication header format - missing token")
)

// BearerFromHeader returns the token portion of an Authorization header.
// The header must be exactly "Bearer <token>" with a single interior space
// and a non-empty token.
func BearerFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrNoAuthHeader
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrNotBearer
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", ErrHeaderSpaces
	}
	if parts[1] == "" {
		return "", ErrTokenMissing
	}
	return parts[1], nil
}
