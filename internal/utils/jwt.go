// Package utils holds small helpers shared across the service.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewAccessToken signs a short-lived HS256 access token for the given
// subject.  The lease service itself only verifies tokens (issuance
// belongs to the external auth collaborator); this helper exists for
// local tooling and tests that need a valid credential.
func NewAccessToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
