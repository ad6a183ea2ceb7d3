// Package session exposes the caller's identity and capabilities, extracted
// from the access token issued by the dashboard's auth flow. Acquiring and
// refreshing the token is the host application's responsibility.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated caller. It answers the capability queries the
// view predicate and query construction depend on.
type Session struct {
	token     string
	userID    string
	caps      map[string]struct{}
	expiresAt time.Time
}

// FromToken parses the access token's claims. The signature is not verified
// here — that is the server's job on every request; the client only needs
// the identity and capability claims baked into the token.
func FromToken(token string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("access token has no subject")
	}

	s := &Session{
		token:  token,
		userID: sub,
		caps:   make(map[string]struct{}),
	}

	if raw, ok := claims["capabilities"].([]any); ok {
		for _, c := range raw {
			if name, ok := c.(string); ok {
				s.caps[name] = struct{}{}
			}
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.expiresAt = exp.Time
	}
	return s, nil
}

// Token returns the raw bearer token for outgoing requests.
func (s *Session) Token() string { return s.token }

// UserID returns the authenticated user's identifier.
func (s *Session) UserID() string { return s.userID }

// HasCapability reports whether the token grants the named capability.
func (s *Session) HasCapability(name string) bool {
	_, ok := s.caps[name]
	return ok
}

// ExpiresAt returns the token's expiry, zero if the token has none.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Expired reports whether the token has expired as of now.
func (s *Session) Expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}
