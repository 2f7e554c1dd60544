package notebook

import (
	"errors"
	"fmt"
	"strings"
)

// Action represents what happened to one local notebook file.
type Action string

const (
	// ActionCreated indicates a new local file was written.
	ActionCreated Action = "created"

	// ActionUpdated indicates an existing local file was replaced.
	ActionUpdated Action = "updated"

	// ActionSkipped indicates an existing local file was left untouched.
	ActionSkipped Action = "skipped"

	// ActionFailed indicates the kernel or file could not be mirrored.
	ActionFailed Action = "failed"
)

// FileResult is the outcome for one file. A kernel whose files could not be
// fetched produces a single failed entry with an empty Path.
type FileResult struct {
	// Kernel is the owner/slug the file belongs to
	Kernel string `json:"kernel" yaml:"kernel"`
	// Path is relative to the engine's destination
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Action Action `json:"action" yaml:"action"`
	Err    error  `json:"-" yaml:"-"`
}

// Result collects the outcome of a sync.
type Result struct {
	Files []FileResult
}

// Created returns files that were newly written.
func (r *Result) Created() []FileResult {
	return r.filterByAction(ActionCreated)
}

// Updated returns files that were replaced.
func (r *Result) Updated() []FileResult {
	return r.filterByAction(ActionUpdated)
}

// Skipped returns files left untouched.
func (r *Result) Skipped() []FileResult {
	return r.filterByAction(ActionSkipped)
}

// Failed returns kernels or files that failed.
func (r *Result) Failed() []FileResult {
	return r.filterByAction(ActionFailed)
}

func (r *Result) filterByAction(action Action) []FileResult {
	var filtered []FileResult
	for _, fr := range r.Files {
		if fr.Action == action {
			filtered = append(filtered, fr)
		}
	}
	return filtered
}

// Success returns true if nothing failed.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0
}

// Err joins the errors of every failed entry, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Failed() {
		label := f.Kernel
		if f.Path != "" {
			label = f.Path
		}
		errs = append(errs, fmt.Errorf("%s: %w", label, f.Err))
	}
	return errors.Join(errs...)
}

// Kernels returns the distinct kernels seen, in order.
func (r *Result) Kernels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, fr := range r.Files {
		if !seen[fr.Kernel] {
			seen[fr.Kernel] = true
			out = append(out, fr.Kernel)
		}
	}
	return out
}

// Summary returns a human-readable summary of the sync.
func (r *Result) Summary() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Mirrored %d kernel(s)\n", len(r.Kernels())))
	sb.WriteString(fmt.Sprintf("  Created: %d\n", len(r.Created())))
	sb.WriteString(fmt.Sprintf("  Updated: %d\n", len(r.Updated())))
	sb.WriteString(fmt.Sprintf("  Skipped: %d\n", len(r.Skipped())))
	sb.WriteString(fmt.Sprintf("  Failed:  %d\n", len(r.Failed())))

	if !r.Success() {
		sb.WriteString("\nErrors:\n")
		for _, f := range r.Failed() {
			label := f.Kernel
			if f.Path != "" {
				label = f.Path
			}
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", label, f.Err))
		}
	}

	return sb.String()
}
