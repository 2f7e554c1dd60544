package config

import (
	"fmt"
	"strings"
)

// Error reports an unreadable or malformed configuration source, or keys
// that an operation requires but no layer provided.
type Error struct {
	// Path is the offending file, if any
	Path string
	// Line is the 1-based line number for malformed entries
	Line int
	// Keys lists missing required keys
	Keys []Key
	// Message describes the failure
	Message string
	// Err is the underlying error (if any)
	Err error
}

// Error returns a formatted config error message.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("config")
	if e.Path != "" {
		fmt.Fprintf(&sb, " %q", e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&sb, " line %d", e.Line)
		}
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if len(e.Keys) > 0 {
		names := make([]string, len(e.Keys))
		for i, k := range e.Keys {
			names[i] = string(k)
		}
		sb.WriteString(": ")
		sb.WriteString(strings.Join(names, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
