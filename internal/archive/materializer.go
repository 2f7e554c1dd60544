package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/remote"
)

// Action is what Materialize did for a target.
type Action string

const (
	// ActionDownloaded means the archive was fetched and expanded.
	ActionDownloaded Action = "downloaded"
	// ActionSkipped means the target directory was already populated.
	ActionSkipped Action = "skipped"
)

// Outcome describes one successful Materialize call.
type Outcome struct {
	Action Action
	// Files lists relative paths written under the target directory
	Files []string
	// Bytes is the size of the transferred payload
	Bytes int64
}

// Tracker observes transfer progress for one target.
type Tracker interface {
	io.Writer
	Finish() error
}

// Materializer fetches archives through a remote.Client and expands them in
// place.
type Materializer struct {
	Client remote.Client
	// Force re-downloads even when the target directory is populated
	Force bool
	// Track, when set, returns a progress tracker for a transfer of size
	// bytes (-1 if unknown)
	Track func(target model.DownloadTarget, size int64) Tracker
}

// IsMaterialized reports whether dir exists and has at least one entry. A
// missing directory is not an error.
func IsMaterialized(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to list %q: %w", dir, err)
	}
	return len(entries) > 0, nil
}

// Materialize downloads target and expands it into target.LocalPath. A
// populated target directory is left alone unless Force is set. The payload
// is staged in a unique directory beside the target and only expanded once
// the whole stream has been received; the stage is always removed.
func (m *Materializer) Materialize(ctx context.Context, target model.DownloadTarget) (*Outcome, error) {
	return m.materialize(ctx, target, m.Force)
}

// Refresh downloads target and expands it over whatever target.LocalPath
// already holds, regardless of Force.
func (m *Materializer) Refresh(ctx context.Context, target model.DownloadTarget) (*Outcome, error) {
	return m.materialize(ctx, target, true)
}

func (m *Materializer) materialize(ctx context.Context, target model.DownloadTarget, force bool) (*Outcome, error) {
	label := target.String()
	log := logging.WithContext(ctx).With(logging.Resource(target.Reference.Slug()), logging.Path(target.LocalPath))

	if !force {
		done, err := IsMaterialized(target.LocalPath)
		if err != nil {
			return nil, err
		}
		if done {
			log.Info("already materialized, skipping")
			return &Outcome{Action: ActionSkipped}, nil
		}
	}

	parent := filepath.Dir(target.LocalPath)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %q: %w", parent, err)
	}
	stageDir, err := os.MkdirTemp(parent, ".kagglesync-stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stageDir); err != nil {
			log.Warn("failed to remove staging directory", logging.Err(err))
		}
	}()

	staged, name, size, err := m.stage(ctx, target, stageDir)
	if err != nil {
		return nil, &DownloadError{Target: label, Err: err}
	}
	log.Debug("payload staged", logging.Bytes(size))

	if err := os.MkdirAll(target.LocalPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %q: %w", target.LocalPath, err)
	}
	files, err := Extract(staged, name, target.LocalPath)
	if err != nil {
		if xerr, ok := err.(*ExtractionError); ok {
			xerr.Target = label
		}
		return nil, err
	}

	log.Info("materialized", logging.Count(len(files)), logging.Bytes(size))
	return &Outcome{Action: ActionDownloaded, Files: files, Bytes: size}, nil
}

// stage streams the archive into stageDir and returns the staged path, the
// payload's file name and the number of bytes received.
func (m *Materializer) stage(ctx context.Context, target model.DownloadTarget, stageDir string) (string, string, int64, error) {
	payload, err := m.Client.FetchArchive(ctx, target)
	if err != nil {
		return "", "", 0, err
	}
	defer payload.Body.Close()

	name := payload.Name
	if name == "" {
		name = target.Reference.Name
	}

	staged := filepath.Join(stageDir, "payload")
	// #nosec G304 - staged lives in a directory we just created
	out, err := os.OpenFile(staged, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", "", 0, err
	}

	var dst io.Writer = out
	var tracker Tracker
	if m.Track != nil {
		tracker = m.Track(target, payload.Size)
		dst = io.MultiWriter(out, tracker)
	}

	n, copyErr := io.Copy(dst, contextReader{ctx: ctx, r: payload.Body})
	closeErr := out.Close()
	if tracker != nil {
		if err := tracker.Finish(); err != nil {
			logging.WithContext(ctx).Debug("failed to finish progress", logging.Resource(target.String()), logging.Err(err))
		}
	}
	if copyErr != nil {
		return "", "", n, fmt.Errorf("transfer interrupted after %d bytes: %w", n, copyErr)
	}
	if closeErr != nil {
		return "", "", n, closeErr
	}
	if payload.Size >= 0 && n != payload.Size {
		return "", "", n, fmt.Errorf("short transfer: got %d of %d bytes", n, payload.Size)
	}
	return staged, name, n, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
