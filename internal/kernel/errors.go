package kernel

import "fmt"

// ValidationError reports a push request that cannot produce valid kernel
// metadata.
type ValidationError struct {
	// Field names the offending input, e.g. "slug" or "notebook"
	Field   string
	Message string
	Err     error
}

// Error returns a formatted validation error message.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
