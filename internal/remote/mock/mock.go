// Package mock provides a scripted remote.Client for testing.
package mock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/remote"
)

// Pushed records one PushKernel call.
type Pushed struct {
	Metadata model.KernelMetadata
	// Files maps file names found in the push directory to their contents
	Files map[string][]byte
}

// Client is a mock implementation of remote.Client for testing.
type Client struct {
	archives     map[string][]byte
	archiveNames map[string]string
	archiveErrs  map[string]error
	brokenAfter  map[string]int

	kernels []model.NotebookDescriptor
	listErr error
	files   map[string][]model.NotebookFile
	fileErr map[string]error

	pushErr error
	pushed  []Pushed

	fetchCalls map[string]int
	fileCalls  map[string]int
	listCalls  int
	lastListed struct {
		owner          string
		includePrivate bool
	}
}

// New creates an empty mock client.
func New() *Client {
	return &Client{
		archives:     make(map[string][]byte),
		archiveNames: make(map[string]string),
		archiveErrs:  make(map[string]error),
		brokenAfter:  make(map[string]int),
		files:        make(map[string][]model.NotebookFile),
		fileErr:      make(map[string]error),
		fetchCalls:   make(map[string]int),
		fileCalls:    make(map[string]int),
	}
}

// WithArchive serves data for the resource identified by slug (owner/name,
// or the competition id).
func (c *Client) WithArchive(slug, name string, data []byte) *Client {
	c.archives[slug] = data
	c.archiveNames[slug] = name
	return c
}

// WithArchiveError makes FetchArchive fail for slug.
func (c *Client) WithArchiveError(slug string, err error) *Client {
	c.archiveErrs[slug] = err
	return c
}

// WithBrokenArchive serves the first n bytes of the archive for slug and then
// fails the stream.
func (c *Client) WithBrokenArchive(slug string, n int) *Client {
	c.brokenAfter[slug] = n
	return c
}

// WithKernels configures the kernels returned by ListKernels.
func (c *Client) WithKernels(kernels ...model.NotebookDescriptor) *Client {
	c.kernels = append(c.kernels, kernels...)
	return c
}

// WithListError makes ListKernels fail.
func (c *Client) WithListError(err error) *Client {
	c.listErr = err
	return c
}

// WithKernelFiles configures the files returned for ref (owner/slug).
func (c *Client) WithKernelFiles(ref string, files ...model.NotebookFile) *Client {
	c.files[ref] = files
	return c
}

// WithKernelFilesError makes FetchKernelFiles fail for ref.
func (c *Client) WithKernelFilesError(ref string, err error) *Client {
	c.fileErr[ref] = err
	return c
}

// WithPushError makes PushKernel fail.
func (c *Client) WithPushError(err error) *Client {
	c.pushErr = err
	return c
}

// FetchArchive implements remote.Client.
func (c *Client) FetchArchive(_ context.Context, target model.DownloadTarget) (*remote.Archive, error) {
	slug := target.Reference.Slug()
	c.fetchCalls[slug]++
	if err := c.archiveErrs[slug]; err != nil {
		return nil, err
	}
	data, ok := c.archives[slug]
	if !ok {
		return nil, fmt.Errorf("%s: %w", slug, remote.ErrNotFound)
	}
	var body io.Reader = bytes.NewReader(data)
	if n, broken := c.brokenAfter[slug]; broken {
		body = io.MultiReader(bytes.NewReader(data[:n]), errReader{})
	}
	return &remote.Archive{
		Name: c.archiveNames[slug],
		Size: int64(len(data)),
		Body: io.NopCloser(body),
	}, nil
}

// ListKernels implements remote.Client. It returns every configured kernel
// owned by owner, public or not; visibility filtering is the caller's job.
func (c *Client) ListKernels(_ context.Context, owner string, includePrivate bool) ([]model.NotebookDescriptor, error) {
	c.listCalls++
	c.lastListed.owner = owner
	c.lastListed.includePrivate = includePrivate
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []model.NotebookDescriptor
	for _, k := range c.kernels {
		if k.Owner == owner {
			out = append(out, k)
		}
	}
	return out, nil
}

// FetchKernelFiles implements remote.Client.
func (c *Client) FetchKernelFiles(_ context.Context, ref model.Reference) ([]model.NotebookFile, error) {
	key := ref.Slug()
	c.fileCalls[key]++
	if err := c.fileErr[key]; err != nil {
		return nil, err
	}
	files, ok := c.files[key]
	if !ok {
		return nil, fmt.Errorf("kernel %s: %w", key, remote.ErrNotFound)
	}
	out := make([]model.NotebookFile, len(files))
	copy(out, files)
	return out, nil
}

// PushKernel implements remote.Client. It snapshots the push directory so
// tests can inspect it after the caller has cleaned up.
func (c *Client) PushKernel(_ context.Context, meta *model.KernelMetadata, dir string) (*remote.PushResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read push dir: %w", err)
	}
	snapshot := Pushed{Metadata: *meta, Files: make(map[string][]byte)}
	for _, e := range entries {
		// #nosec G304 - dir is created by the caller under test
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		snapshot.Files[e.Name()] = data
	}
	c.pushed = append(c.pushed, snapshot)

	if c.pushErr != nil {
		return nil, c.pushErr
	}
	return &remote.PushResult{
		Ref:           meta.ID,
		URL:           "https://www.kaggle.com/code/" + meta.ID,
		VersionNumber: len(c.pushed),
	}, nil
}

// FetchCalls returns how many times FetchArchive was called for slug.
func (c *Client) FetchCalls(slug string) int {
	return c.fetchCalls[slug]
}

// FileCalls returns how many times FetchKernelFiles was called for ref.
func (c *Client) FileCalls(ref string) int {
	return c.fileCalls[ref]
}

// ListCalls returns how many times ListKernels was called.
func (c *Client) ListCalls() int {
	return c.listCalls
}

// LastList returns the arguments of the most recent ListKernels call.
func (c *Client) LastList() (owner string, includePrivate bool) {
	return c.lastListed.owner, c.lastListed.includePrivate
}

// Pushed returns every recorded push.
func (c *Client) Pushed() []Pushed {
	return c.pushed
}

// ErrStreamBroken is the error surfaced by WithBrokenArchive streams.
var ErrStreamBroken = errors.New("connection reset")

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, ErrStreamBroken
}

var _ remote.Client = (*Client)(nil)
