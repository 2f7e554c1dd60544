package download

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/klauern/kagglesync/internal/model"
)

// Action represents what happened to one download target.
type Action string

const (
	// ActionDownloaded indicates the archive was fetched and expanded.
	ActionDownloaded Action = "downloaded"

	// ActionSkipped indicates the target directory was already populated.
	ActionSkipped Action = "skipped"

	// ActionFailed indicates the fetch or the extraction failed.
	ActionFailed Action = "failed"
)

// ItemResult is the outcome for one target.
type ItemResult struct {
	Target model.DownloadTarget `json:"target" yaml:"target"`
	Action Action               `json:"action" yaml:"action"`
	Files  []string             `json:"files,omitempty" yaml:"files,omitempty"`
	Bytes  int64                `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Err    error                `json:"-" yaml:"-"`
}

// Success returns true if the target did not fail.
func (ir *ItemResult) Success() bool {
	return ir.Action != ActionFailed
}

// Result collects the outcome of a batch.
type Result struct {
	Items []ItemResult
}

// Downloaded returns targets that were fetched.
func (r *Result) Downloaded() []ItemResult {
	return r.filterByAction(ActionDownloaded)
}

// Skipped returns targets that were already materialized.
func (r *Result) Skipped() []ItemResult {
	return r.filterByAction(ActionSkipped)
}

// Failed returns targets that failed.
func (r *Result) Failed() []ItemResult {
	return r.filterByAction(ActionFailed)
}

// Succeeded returns every target that did not fail.
func (r *Result) Succeeded() []ItemResult {
	var ok []ItemResult
	for _, ir := range r.Items {
		if ir.Success() {
			ok = append(ok, ir)
		}
	}
	return ok
}

func (r *Result) filterByAction(action Action) []ItemResult {
	var filtered []ItemResult
	for _, ir := range r.Items {
		if ir.Action == action {
			filtered = append(filtered, ir)
		}
	}
	return filtered
}

// Success returns true if no target failed.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0
}

// TotalBytes sums the bytes transferred across the batch.
func (r *Result) TotalBytes() int64 {
	var n int64
	for _, ir := range r.Items {
		n += ir.Bytes
	}
	return n
}

// Err joins the errors of every failed target, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", f.Target, f.Err))
	}
	return errors.Join(errs...)
}

// Summary returns a human-readable summary of the batch.
func (r *Result) Summary() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Processed %d target(s), %s transferred\n",
		len(r.Items), humanize.Bytes(uint64(r.TotalBytes()))))
	sb.WriteString(fmt.Sprintf("  Downloaded: %d\n", len(r.Downloaded())))
	sb.WriteString(fmt.Sprintf("  Skipped:    %d\n", len(r.Skipped())))
	sb.WriteString(fmt.Sprintf("  Failed:     %d\n", len(r.Failed())))

	if !r.Success() {
		sb.WriteString("\nErrors:\n")
		for _, f := range r.Failed() {
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", f.Target, f.Err))
		}
	}

	return sb.String()
}
