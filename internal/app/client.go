package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/niveshya/leadops/internal/dataapi"
	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/session"
	"github.com/niveshya/leadops/internal/staging"
)

// ClientRuntime bundles the dependencies shared by the operator CLI and the upload worker.
type ClientRuntime struct {
	Config    *ClientConfig
	Logger    *slog.Logger
	Sessions  *session.Store
	API       *dataapi.Client
	Staging   *staging.SQLiteStore
	Submitter *meetings.Submitter
	tokens    *storeTokens
}

// NewClientRuntime opens the local state directory and wires the Data API client to the
// persisted session.
func NewClientRuntime(ctx context.Context, cfg *ClientConfig, logger *slog.Logger) (*ClientRuntime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	tokens := &storeTokens{}
	api, err := dataapi.New(cfg.APIURL, nil, tokens)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(session.Options{Revoker: api, Logger: logger}, session.NewFileSource(cfg.TokenPath()))
	tokens.store = sessions
	sessions.Restore()

	store, err := staging.Open(ctx, staging.Config{Path: cfg.StagingPath(), Logger: logger})
	if err != nil {
		return nil, err
	}

	return &ClientRuntime{
		Config:    cfg,
		Logger:    logger,
		Sessions:  sessions,
		API:       api,
		Staging:   store,
		Submitter: meetings.NewSubmitter(store, api, logger),
		tokens:    tokens,
	}, nil
}

// Close releases the staging database.
func (r *ClientRuntime) Close() error {
	if r == nil || r.Staging == nil {
		return nil
	}
	return r.Staging.Close()
}

// storeTokens supplies the session token, re-reading the token file when the
// current session is missing or expired. A login made by another process is
// picked up by a long-running worker this way.
type storeTokens struct {
	store *session.Store
}

func (t *storeTokens) Token() string {
	if t.store == nil {
		return ""
	}
	if !t.store.IsAuthenticated() {
		t.store.Restore()
	}
	return t.store.Token()
}

// ErrNotSignedIn is returned by commands that need a session when none is stored.
var ErrNotSignedIn = errors.New("not signed in, run leadrec login")

// RequireSession returns the current session or ErrNotSignedIn.
func (r *ClientRuntime) RequireSession() (*session.Session, error) {
	if r.tokens.Token() == "" {
		return nil, ErrNotSignedIn
	}
	return r.Sessions.Current(), nil
}
