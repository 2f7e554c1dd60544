// Package remote defines the capability kagglesync needs from the platform:
// fetching archives, listing and pulling kernels, and pushing kernels.
package remote

import (
	"context"
	"errors"
	"io"

	"github.com/klauern/kagglesync/internal/model"
)

var (
	// ErrNotFound is returned when the requested resource does not exist or
	// is not visible to the authenticated identity.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized is returned when credentials are missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Archive is a fetched payload. Body must be closed by the caller.
type Archive struct {
	// Name is the file name reported by the platform, if any
	Name string
	// Size is the expected length in bytes, or -1 when unknown
	Size int64
	Body io.ReadCloser
}

// PushResult describes the platform's response to a kernel push.
type PushResult struct {
	Ref           string `json:"ref" yaml:"ref"`
	URL           string `json:"url" yaml:"url"`
	VersionNumber int    `json:"version_number,omitempty" yaml:"version_number,omitempty"`
}

// Client is the platform capability. Implementations own timeouts and
// authentication; callers pass a context for cancellation.
type Client interface {
	// FetchArchive streams the archive for a competition or dataset target.
	FetchArchive(ctx context.Context, target model.DownloadTarget) (*Archive, error)
	// ListKernels enumerates kernels owned by owner. Private kernels are only
	// requested when includePrivate is set.
	ListKernels(ctx context.Context, owner string, includePrivate bool) ([]model.NotebookDescriptor, error)
	// FetchKernelFiles returns the source files of one kernel.
	FetchKernelFiles(ctx context.Context, ref model.Reference) ([]model.NotebookFile, error)
	// PushKernel uploads the kernel whose metadata and code file live in dir.
	PushKernel(ctx context.Context, meta *model.KernelMetadata, dir string) (*PushResult, error)
}
