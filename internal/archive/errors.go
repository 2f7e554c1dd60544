package archive

import "fmt"

// DownloadError reports a transport failure (network, authentication,
// not-found or an interrupted stream) for one resource.
type DownloadError struct {
	// Target labels the resource, e.g. "dataset acme/foo"
	Target string
	Err    error
}

// Error returns a formatted download error message.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a corrupt or unsafe archive.
type ExtractionError struct {
	Target string
	// Entry is the archive member being extracted, if known
	Entry string
	Err   error
}

// Error returns a formatted extraction error message.
func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s: entry %q: %v", e.Target, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
