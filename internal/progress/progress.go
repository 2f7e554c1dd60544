// Package progress renders byte-transfer progress for archive downloads.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/ui"
)

// Bar wraps progressbar with kagglesync's UI and logging conventions. A
// disabled bar still counts bytes so completion can be logged.
type Bar struct {
	bar     *progressbar.ProgressBar
	enabled bool
	desc    string
	written int64
	started time.Time
}

// Options configures the progress bar behavior.
type Options struct {
	// Max is the expected number of bytes, or -1 when unknown.
	Max int64
	// Description is the prefix text shown before the progress bar.
	Description string
	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer
}

// New creates a byte progress bar. The bar is only drawn when:
//   - Colors are enabled (respects NO_COLOR and --no-color)
//   - Writer is a terminal
//   - The logger is not at debug level
func New(opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	b := &Bar{
		enabled: shouldShowProgress(opts.Writer),
		desc:    opts.Description,
		started: time.Now(),
	}

	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s started", opts.Description), logging.Bytes(opts.Max))
		return b
	}

	b.bar = progressbar.NewOptions64(
		opts.Max,
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(opts.Writer, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	)

	return b
}

// Transfer is a shorthand for a stderr bar tracking size bytes.
func Transfer(description string, size int64) *Bar {
	return New(Options{Max: size, Description: description, Writer: os.Stderr})
}

// Write records len(p) transferred bytes. It never fails so it can sit in an
// io.MultiWriter beside the real destination.
func (b *Bar) Write(p []byte) (int, error) {
	b.written += int64(len(p))
	if b.enabled {
		_ = b.bar.Add(len(p))
	}
	return len(p), nil
}

// Written returns the number of bytes recorded so far.
func (b *Bar) Written() int64 {
	return b.written
}

// Finish completes the progress bar and logs completion.
func (b *Bar) Finish() error {
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s completed", b.desc),
			logging.Bytes(b.written),
			"size", humanize.Bytes(uint64(b.written)),
			"duration", time.Since(b.started).Round(time.Millisecond),
		)
		return nil
	}
	return b.bar.Finish()
}

// Clear removes the progress bar from the terminal.
func (b *Bar) Clear() error {
	if !b.enabled {
		return nil
	}
	return b.bar.Clear()
}

// Enabled reports whether the bar is drawn.
func (b *Bar) Enabled() bool {
	return b.enabled
}

// shouldShowProgress determines if progress bars should be displayed.
func shouldShowProgress(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	if logging.Default().Enabled(context.Background(), logging.LevelDebug) {
		return false
	}
	return true
}
