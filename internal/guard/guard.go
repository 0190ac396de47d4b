// Package guard answers role questions about the current session.
//
// The predicates only decide which actions the client offers. They are not a
// security boundary: the server re-checks permissions on every mutating call.
package guard

import (
	"fmt"
	"slices"

	"github.com/niveshya/leadops/internal/shared"
)

// Subject exposes the role names of an identity. Implementations must tolerate nil receivers.
type Subject interface {
	Roles() []string
}

// Authenticated is implemented by subjects that can expire.
type Authenticated interface {
	Authenticated() bool
}

// HasRole reports whether the subject carries the named role.
func HasRole(s Subject, name string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Roles(), name)
}

// HasAnyRole reports whether the subject carries at least one of names.
func HasAnyRole(s Subject, names []string) bool {
	if s == nil {
		return false
	}
	held := s.Roles()
	for _, n := range names {
		if slices.Contains(held, n) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the subject carries every one of names.
func HasAllRoles(s Subject, names []string) bool {
	if s == nil {
		return false
	}
	held := s.Roles()
	for _, n := range names {
		if !slices.Contains(held, n) {
			return false
		}
	}
	return true
}

// Require returns nil when the subject holds any of names. It fails with
// ErrUnauthenticated for a missing or expired subject and ErrUnauthorized otherwise.
func Require(s Subject, names ...string) error {
	if !isAuthenticated(s) {
		return shared.ErrUnauthenticated
	}
	if len(names) == 0 || HasAnyRole(s, names) {
		return nil
	}
	return fmt.Errorf("%w: requires one of %v", shared.ErrUnauthorized, names)
}

func isAuthenticated(s Subject) bool {
	if s == nil {
		return false
	}
	if a, ok := s.(Authenticated); ok {
		return a.Authenticated()
	}
	return true
}
