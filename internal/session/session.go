// Package session holds the client's authenticated identity.
package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken indicates a token whose claims cannot be read.
var ErrMalformedToken = errors.New("session: malformed token")

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Session is an immutable snapshot of the current identity.
type Session struct {
	token     string
	userID    string
	email     string
	name      string
	roles     []string
	expiresAt time.Time
	source    string
	now       func() time.Time
}

// Decode reads identity claims from a bearer token without verifying its signature.
// The server remains the authority; the client only uses the claims for display and gating.
func Decode(token string) (*Session, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing sub or exp", ErrMalformedToken)
	}
	return &Session{
		token:     token,
		userID:    claims.Subject,
		email:     claims.Email,
		name:      claims.Name,
		roles:     slices.Clone(claims.Roles),
		expiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Token returns the bearer token.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// UserID returns the subject of the token.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

// Email returns the user's email.
func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// Name returns the user's display name.
func (s *Session) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Roles returns a copy of the role names carried by the token.
func (s *Session) Roles() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.roles)
}

// ExpiresAt returns the token expiry.
func (s *Session) ExpiresAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.expiresAt
}

// Source names the token source the session was loaded from.
func (s *Session) Source() string {
	if s == nil {
		return ""
	}
	return s.source
}

// ValidAt reports whether the token is present and unexpired at t.
func (s *Session) ValidAt(t time.Time) bool {
	return s != nil && s.token != "" && t.Before(s.expiresAt)
}

// Authenticated reports whether the session is valid now, as told by the clock of
// the Store that adopted it. Decoded sessions use the wall clock.
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return s.ValidAt(now())
}

func (s *Session) adopt(source string, now func() time.Time) *Session {
	c := *s
	c.source = source
	c.now = now
	return &c
}
