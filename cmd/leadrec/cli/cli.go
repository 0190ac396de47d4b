// Package cli implements the leadrec subcommands. Each command takes an options
// struct and returns a process exit code.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/niveshya/leadops/internal/admin"
	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/platform/clock"
	"github.com/niveshya/leadops/internal/recorder"
	"github.com/niveshya/leadops/internal/session"
	"github.com/niveshya/leadops/internal/shared"
	"github.com/niveshya/leadops/internal/staging"
)

// Exit codes shared by all commands.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	// ExitVetoed means logout was refused because recordings are still staged.
	ExitVetoed = 3
)

// Sessions is the session store used by login, logout and whoami.
type Sessions interface {
	Current() *session.Session
	Login(ctx context.Context, auth session.Authenticator, email, password string) (*session.Session, error)
	Logout(ctx context.Context) error
	OnBeforeLogout(hook session.LogoutHook) (unregister func())
}

// Recordings moves recordings through local staging.
type Recordings interface {
	Stage(ctx context.Context, meetingID string, artifact recorder.Artifact) (staging.Metadata, error)
	Upload(ctx context.Context, meetingID string) (meetings.UploadResult, error)
	Discard(ctx context.Context, meetingID string) error
	Pending(ctx context.Context) ([]staging.Metadata, error)
}

// Enqueuer hands uploads to the background worker.
type Enqueuer interface {
	EnqueueRecordingUpload(ctx context.Context, meetingID string) (*asynq.TaskInfo, error)
}

// Env carries the dependencies of every command.
type Env struct {
	Sessions   Sessions
	Auth       session.Authenticator
	Console    *admin.Console
	Recordings Recordings
	// Enqueuer is nil when no queue is configured; uploads then run inline.
	Enqueuer Enqueuer
	Clock    clock.Clock

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

func (e *Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Env) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e *Env) stdin() io.Reader {
	if e.Stdin == nil {
		return os.Stdin
	}
	return e.Stdin
}

func (e *Env) clock() clock.Clock {
	if e.Clock == nil {
		return clock.Real()
	}
	return e.Clock
}

// failf prints a command error and returns ExitFailure.
func (e *Env) failf(cmd string, err error) int {
	fmt.Fprintf(e.stderr(), "%s: %s\n", cmd, shared.UserSafeMessage(err))
	return ExitFailure
}

func (e *Env) usagef(cmd, format string, args ...any) int {
	fmt.Fprintf(e.stderr(), "%s: %s\n", cmd, fmt.Sprintf(format, args...))
	return ExitUsage
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
