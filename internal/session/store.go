package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrLogoutVetoed is returned when a before-logout hook cancels the logout.
var ErrLogoutVetoed = errors.New("session: logout vetoed")

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Revoker invalidates a token on the server.
type Revoker interface {
	Logout(ctx context.Context, token string) error
}

// LogoutEvent is dispatched to hooks before the session is cleared.
type LogoutEvent struct {
	Session *Session

	reason string
	vetoed bool
}

// Cancel vetoes the logout. The first reason given is kept.
func (e *LogoutEvent) Cancel(reason string) {
	if !e.vetoed {
		e.reason = reason
	}
	e.vetoed = true
}

// Canceled reports whether any hook vetoed the logout.
func (e *LogoutEvent) Canceled() bool { return e.vetoed }

// Reason returns the veto reason.
func (e *LogoutEvent) Reason() string { return e.reason }

// LogoutHook observes an imminent logout and may cancel it.
type LogoutHook func(*LogoutEvent)

// Options configures a Store.
type Options struct {
	Clock   func() time.Time
	Revoker Revoker
	Logger  *slog.Logger
}

// Store owns the current session. Only Login and Logout mutate it.
type Store struct {
	mu      sync.RWMutex
	sources []TokenSource
	current *Session

	hooksMu sync.Mutex
	hooks   []hookEntry
	nextID  int

	now     func() time.Time
	revoker Revoker
	logger  *slog.Logger
}

type hookEntry struct {
	id   int
	hook LogoutHook
}

// NewStore constructs a Store over sources given in priority order.
func NewStore(opts Options, sources ...TokenSource) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{sources: sources, now: opts.Clock, revoker: opts.Revoker, logger: opts.Logger}
}

// Restore adopts the first stored token that decodes and has not expired.
// It returns nil when no source holds a usable token.
func (s *Store) Restore() *Session {
	for _, src := range s.sources {
		token, err := src.Load()
		if err != nil {
			s.logger.Warn("load token", slog.String("source", src.Name()), slog.Any("error", err))
			continue
		}
		if token == "" {
			continue
		}
		sess, err := Decode(token)
		if err != nil {
			s.logger.Warn("decode token", slog.String("source", src.Name()), slog.Any("error", err))
			continue
		}
		if !sess.ValidAt(s.now()) {
			continue
		}
		sess = sess.adopt(src.Name(), s.now)
		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()
		return sess
	}
	return nil
}

// Current returns the current session snapshot, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current bearer token, or "".
func (s *Store) Token() string {
	return s.Current().Token()
}

// IsAuthenticated reports whether a token is present and unexpired.
func (s *Store) IsAuthenticated() bool {
	return s.Current().ValidAt(s.now())
}

// Login exchanges credentials for a token and persists it to the first source that accepts it.
func (s *Store) Login(ctx context.Context, auth Authenticator, email, password string) (*Session, error) {
	token, err := auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess, err := Decode(token)
	if err != nil {
		return nil, err
	}

	var saveErrs []error
	saved := ""
	for _, src := range s.sources {
		if err := src.Save(token); err != nil {
			saveErrs = append(saveErrs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		saved = src.Name()
		break
	}
	if saved == "" && len(s.sources) > 0 {
		return nil, fmt.Errorf("session: persist token: %w", errors.Join(saveErrs...))
	}

	sess = sess.adopt(saved, s.now)
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, nil
}

// OnBeforeLogout registers a hook run before every logout. The returned func unregisters it.
func (s *Store) OnBeforeLogout(hook LogoutHook) (unregister func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	id := s.nextID
	s.nextID++
	s.hooks = append(s.hooks, hookEntry{id: id, hook: hook})
	return func() {
		s.hooksMu.Lock()
		defer s.hooksMu.Unlock()
		for i, h := range s.hooks {
			if h.id == id {
				s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
				return
			}
		}
	}
}

// Logout dispatches a LogoutEvent to every hook. If any hook cancels, the session and
// all sources are left untouched and ErrLogoutVetoed is returned. Otherwise every source
// is cleared and the server is asked to revoke the token; revocation failures are logged only.
func (s *Store) Logout(ctx context.Context) error {
	s.hooksMu.Lock()
	hooks := make([]LogoutHook, 0, len(s.hooks))
	for _, h := range s.hooks {
		hooks = append(hooks, h.hook)
	}
	s.hooksMu.Unlock()

	current := s.Current()
	ev := &LogoutEvent{Session: current}
	for _, hook := range hooks {
		hook(ev)
	}
	if ev.Canceled() {
		return fmt.Errorf("%w: %s", ErrLogoutVetoed, ev.Reason())
	}

	var clearErrs []error
	s.mu.Lock()
	s.current = nil
	for _, src := range s.sources {
		if err := src.Clear(); err != nil {
			clearErrs = append(clearErrs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	s.mu.Unlock()

	if s.revoker != nil && current != nil {
		if err := s.revoker.Logout(ctx, current.Token()); err != nil {
			s.logger.Warn("server logout", slog.Any("error", err))
		}
	}
	if len(clearErrs) > 0 {
		return fmt.Errorf("session: clear token: %w", errors.Join(clearErrs...))
	}
	return nil
}
