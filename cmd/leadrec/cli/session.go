package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/niveshya/leadops/internal/admin"
	"github.com/niveshya/leadops/internal/session"
)

// LoginOptions configures the login command.
type LoginOptions struct {
	Email string
	// Password is read from stdin when empty.
	Password string
}

// Login exchanges credentials for a session and persists it.
func (e *Env) Login(ctx context.Context, opts LoginOptions) int {
	email := strings.TrimSpace(opts.Email)
	if email == "" {
		return e.usagef("login", "--email is required")
	}
	password := opts.Password
	if password == "" {
		line, err := bufio.NewReader(e.stdin()).ReadString('\n')
		if err != nil && line == "" {
			return e.usagef("login", "password required on stdin")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	sess, err := e.Sessions.Login(ctx, e.Auth, email, password)
	if err != nil {
		return e.failf("login", err)
	}
	fmt.Fprintf(e.stdout(), "signed in as %s (%s), roles: %s, expires %s\n",
		sess.Email(), sess.UserID(), strings.Join(sess.Roles(), ", "), sess.ExpiresAt().Format(time.RFC3339))
	return ExitOK
}

// LogoutOptions configures the logout command.
type LogoutOptions struct {
	// Force signs out even when recordings are still waiting for upload.
	Force bool
}

// Logout revokes and clears the session. Staged recordings veto the logout
// unless Force is set, since the upload worker needs the session.
func (e *Env) Logout(ctx context.Context, opts LogoutOptions) int {
	if !opts.Force && e.Recordings != nil {
		pending, err := e.Recordings.Pending(ctx)
		if err != nil {
			return e.failf("logout", err)
		}
		if len(pending) > 0 {
			unregister := e.Sessions.OnBeforeLogout(func(ev *session.LogoutEvent) {
				ev.Cancel(fmt.Sprintf("%d recording(s) still waiting for upload", len(pending)))
			})
			defer unregister()
		}
	}
	err := e.Sessions.Logout(ctx)
	if errors.Is(err, session.ErrLogoutVetoed) {
		fmt.Fprintf(e.stderr(), "logout: %v (use --force to sign out anyway)\n", err)
		return ExitVetoed
	}
	if err != nil {
		return e.failf("logout", err)
	}
	fmt.Fprintln(e.stdout(), "signed out")
	return ExitOK
}

type whoami struct {
	UserID      string            `json:"user_id"`
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	Roles       []string          `json:"roles"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Source      string            `json:"source"`
	Affordances admin.Affordances `json:"affordances"`
}

// Whoami prints the current session.
func (e *Env) Whoami(ctx context.Context, jsonOutput bool) int {
	sess := e.Sessions.Current()
	if !sess.ValidAt(e.clock().Now()) {
		fmt.Fprintln(e.stderr(), "whoami: not signed in")
		return ExitFailure
	}
	out := whoami{
		UserID:      sess.UserID(),
		Email:       sess.Email(),
		Name:        sess.Name(),
		Roles:       sess.Roles(),
		ExpiresAt:   sess.ExpiresAt(),
		Source:      sess.Source(),
		Affordances: admin.AffordancesFor(sess),
	}
	if jsonOutput {
		if err := writeJSON(e.stdout(), out); err != nil {
			return e.failf("whoami", err)
		}
		return ExitOK
	}
	fmt.Fprintf(e.stdout(), "%s <%s>\nroles:   %s\nexpires: %s\n",
		out.UserID, out.Email, strings.Join(out.Roles, ", "), out.ExpiresAt.Format(time.RFC3339))
	return ExitOK
}
