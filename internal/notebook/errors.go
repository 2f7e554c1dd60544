package notebook

import "fmt"

// NotFoundError reports an explicitly requested kernel that does not exist or
// is not visible to the caller.
type NotFoundError struct {
	// Ref is the kernel in owner/slug form
	Ref string
	Err error
}

// Error returns a formatted not-found message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kernel %s not found", e.Ref)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}
