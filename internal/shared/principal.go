package shared

import (
	"slices"
	"time"
)

// Principal describes the authenticated actor of a request.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the principal carries the named role.
func (p Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool {
	return p.UserID == ""
}
