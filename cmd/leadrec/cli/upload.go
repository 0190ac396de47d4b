package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// UploadOptions configures the upload command.
type UploadOptions struct {
	MeetingIDs []string
	// All uploads every staged recording.
	All bool
}

// Upload sends staged recordings. With an Enqueuer the uploads are queued for the
// worker; otherwise they run inline and block until the server answers.
func (e *Env) Upload(ctx context.Context, opts UploadOptions) int {
	ids := opts.MeetingIDs
	if opts.All {
		pending, err := e.Recordings.Pending(ctx)
		if err != nil {
			return e.failf("upload", err)
		}
		ids = ids[:0:0]
		for _, meta := range pending {
			ids = append(ids, meta.MeetingID)
		}
	}
	if len(ids) == 0 {
		if opts.All {
			fmt.Fprintln(e.stdout(), "nothing to upload")
			return ExitOK
		}
		return e.usagef("upload", "name a meeting or pass --all")
	}

	var errs []error
	for _, id := range ids {
		if e.Enqueuer != nil {
			info, err := e.Enqueuer.EnqueueRecordingUpload(ctx, id)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			if info == nil {
				fmt.Fprintf(e.stdout(), "%s: upload already queued\n", id)
				continue
			}
			fmt.Fprintf(e.stdout(), "%s: queued as %s\n", id, info.ID)
			continue
		}
		res, err := e.Recordings.Upload(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		fmt.Fprintf(e.stdout(), "%s: uploaded %s (%d bytes, %s)\n", id, res.AudioFilename, res.FileSize, res.ProcessingStatus)
	}
	for _, err := range errs {
		e.failf("upload", err)
	}
	if len(errs) > 0 {
		return ExitFailure
	}
	return ExitOK
}

// Pending lists staged recordings.
func (e *Env) Pending(ctx context.Context, jsonOutput bool) int {
	pending, err := e.Recordings.Pending(ctx)
	if err != nil {
		return e.failf("pending", err)
	}
	if jsonOutput {
		if err := writeJSON(e.stdout(), pending); err != nil {
			return e.failf("pending", err)
		}
		return ExitOK
	}
	if len(pending) == 0 {
		fmt.Fprintln(e.stdout(), "no recordings waiting for upload")
		return ExitOK
	}
	tw := tabwriter.NewWriter(e.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEETING\tFILE\tBYTES\tDURATION\tRECORDED")
	for _, meta := range pending {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", meta.MeetingID, meta.Filename, meta.Size,
			formatElapsed(meta.Duration), meta.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
	return ExitOK
}

// Discard drops the staged recording of a meeting without uploading it.
func (e *Env) Discard(ctx context.Context, meetingID string) int {
	if meetingID == "" {
		return e.usagef("discard", "name a meeting")
	}
	if err := e.Recordings.Discard(ctx, meetingID); err != nil {
		return e.failf("discard", err)
	}
	fmt.Fprintf(e.stdout(), "discarded recording for %s\n", meetingID)
	return ExitOK
}
