// leadrec is the operator CLI: it signs in to the LeadOps API, records meeting
// audio from an encoder or file, stages it locally and uploads it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/niveshya/leadops/cmd/leadrec/cli"
	"github.com/niveshya/leadops/internal/admin"
	"github.com/niveshya/leadops/internal/app"
	"github.com/niveshya/leadops/jobs"
)

const usage = `usage: leadrec <command> [flags]

commands:
  login     sign in and store the session
  logout    revoke and clear the session
  whoami    show the signed-in user
  roles     manage roles (list, permissions, create, update, delete, assign, unassign, user)
  record    capture meeting audio and stage it for upload
  pending   list recordings waiting for upload
  upload    upload staged recordings
  discard   drop a staged recording
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return cli.ExitUsage
	}
	command, args := args[0], args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "leadrec: load config: %v\n", err)
		return cli.ExitFailure
	}
	logger := app.NewLoggerTo(os.Stderr, cfg.LogFormat)

	runtime, err := app.NewClientRuntime(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leadrec: %v\n", err)
		return cli.ExitFailure
	}
	defer runtime.Close()

	env := &cli.Env{
		Sessions:   runtime.Sessions,
		Auth:       runtime.API,
		Console:    admin.NewConsole(runtime.API, runtime.Sessions, nil, logger),
		Recordings: runtime.Submitter,
	}
	if cfg.RedisAddr != "" {
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			fmt.Fprintf(os.Stderr, "leadrec: queue client: %v\n", err)
			return cli.ExitFailure
		}
		defer client.Close()
		env.Enqueuer = client
	}

	flags := pflag.NewFlagSet("leadrec "+command, pflag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "print JSON")

	switch command {
	case "login":
		var opts cli.LoginOptions
		flags.StringVar(&opts.Email, "email", "", "account email")
		flags.StringVar(&opts.Password, "password", os.Getenv("LEADREC_PASSWORD"), "password (read from stdin when empty)")
		if code, ok := parse(flags, args); !ok {
			return code
		}
		return env.Login(ctx, opts)

	case "logout":
		var opts cli.LogoutOptions
		flags.BoolVar(&opts.Force, "force", false, "sign out even with recordings waiting for upload")
		if code, ok := parse(flags, args); !ok {
			return code
		}
		return env.Logout(ctx, opts)

	case "whoami":
		if code, ok := parse(flags, args); !ok {
			return code
		}
		return env.Whoami(ctx, *jsonOut)

	case "roles":
		var opts cli.RolesOptions
		flags.StringVar(&opts.RoleID, "role", "", "role id")
		flags.StringVar(&opts.UserID, "user", "", "user id")
		flags.StringVar(&opts.Name, "name", "", "role name")
		flags.StringVar(&opts.Description, "description", "", "role description")
		flags.StringVar(&opts.Color, "color", "", "role color as #RRGGBB")
		flags.StringSliceVar(&opts.Permissions, "permission", nil, "permission name (repeatable)")
		if code, ok := parse(flags, args); !ok {
			return code
		}
		if flags.NArg() > 0 {
			opts.Action = flags.Arg(0)
		}
		opts.Set = map[string]bool{}
		flags.Visit(func(f *pflag.Flag) { opts.Set[f.Name] = true })
		opts.JSONOutput = *jsonOut
		return env.Roles(ctx, opts)

	case "record":
		opts := cli.RecordOptions{
			MIMEType:     cfg.MIMEType,
			Timeslice:    cfg.Timeslice,
			PollInterval: cfg.PollInterval,
		}
		var input, encoder string
		flags.StringVar(&opts.MeetingID, "meeting", "", "meeting id")
		flags.StringVar(&input, "input", "-", "encoded audio file, or - for stdin")
		flags.StringVar(&encoder, "exec", "", "encoder command whose stdout is recorded, run via sh -c")
		flags.StringVar(&opts.MIMEType, "mime-type", cfg.MIMEType, "container type of the captured audio")
		flags.DurationVar(&opts.MaxDuration, "max-duration", 0, "stop after this long")
		flags.BoolVar(&opts.Upload, "upload", false, "upload as soon as the recording is staged")
		if code, ok := parse(flags, args); !ok {
			return code
		}
		opts.Open = openSource(input, encoder)
		return env.Record(ctx, opts)

	case "pending":
		if code, ok := parse(flags, args); !ok {
			return code
		}
		return env.Pending(ctx, *jsonOut)

	case "upload":
		var opts cli.UploadOptions
		flags.BoolVar(&opts.All, "all", false, "upload every staged recording")
		if code, ok := parse(flags, args); !ok {
			return code
		}
		opts.MeetingIDs = flags.Args()
		return env.Upload(ctx, opts)

	case "discard":
		if code, ok := parse(flags, args); !ok {
			return code
		}
		return env.Discard(ctx, flags.Arg(0))

	default:
		fmt.Fprintf(os.Stderr, "leadrec: unknown command %q\n\n%s", command, usage)
		return cli.ExitUsage
	}
}

func parse(flags *pflag.FlagSet, args []string) (int, bool) {
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return cli.ExitOK, false
		}
		return cli.ExitUsage, false
	}
	return 0, true
}

// openSource selects the capture source: an encoder process, stdin or a file.
func openSource(input, encoder string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if encoder != "" {
			cmd := exec.CommandContext(ctx, "sh", "-c", encoder)
			cmd.Stderr = os.Stderr
			out, err := cmd.StdoutPipe()
			if err != nil {
				return nil, err
			}
			if err := cmd.Start(); err != nil {
				return nil, fmt.Errorf("start encoder: %w", err)
			}
			return &process{ReadCloser: out, cmd: cmd}, nil
		}
		if input == "" || input == "-" {
			return io.NopCloser(os.Stdin), nil
		}
		return os.Open(input)
	}
}

// process stops the encoder when the capture stream closes.
type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	_ = p.cmd.Process.Signal(os.Interrupt)
	err := p.ReadCloser.Close()
	_ = p.cmd.Wait()
	return err
}
