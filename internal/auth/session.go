// Package auth holds the client's bearer session token. The hosted backend
// is the authoritative verifier; the client only decodes claims to learn
// the owner identity and the expiry, so it can stop syncing on a dead
// session instead of spamming rejected requests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSessionToken indicates the bearer token could not be
	// decoded.
	ErrInvalidSessionToken = errors.New("auth: invalid session token")
	// ErrMissingSubject indicates the token carries no subject claim.
	ErrMissingSubject = errors.New("auth: session token has no subject")
)

// SessionToken wraps the backend-issued bearer JWT.
type SessionToken struct {
	raw       string
	subject   string
	expiresAt time.Time
}

// ParseSessionToken decodes the token claims without verifying the
// signature; verification happens server-side on every request.
func ParseSessionToken(raw string) (*SessionToken, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSessionToken)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(trimmed, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMissingSubject
	}

	token := &SessionToken{raw: trimmed, subject: subject}
	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
		token.expiresAt = expiry.Time
	}
	return token, nil
}

// Bearer returns the raw token for the Authorization header.
func (t *SessionToken) Bearer() string {
	return t.raw
}

// Subject returns the owner identity the token was issued for.
func (t *SessionToken) Subject() string {
	return t.subject
}

// ExpiresAt returns the token expiry, or the zero time when the token
// carries none.
func (t *SessionToken) ExpiresAt() time.Time {
	return t.expiresAt
}

// Expired reports whether the token is past its expiry at the given
// instant. Tokens without an expiry claim never expire client-side.
func (t *SessionToken) Expired(now time.Time) bool {
	if t.expiresAt.IsZero() {
		return false
	}
	return now.After(t.expiresAt)
}
