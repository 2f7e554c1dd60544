// Package notebook mirrors remote kernels into a local working directory.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/reference"
	"github.com/klauern/kagglesync/internal/remote"
)

// Options selects which kernels to mirror.
type Options struct {
	// Owner is the account whose kernels are listed
	Owner string
	// Identity is the authenticated username; private kernels are only
	// listed when it matches Owner
	Identity string
	// Kernel, when set, mirrors only this kernel (owner/slug or bare slug)
	Kernel string
	// IncludePrivate asks for private kernels as well
	IncludePrivate bool
	// Match is an optional glob over kernel slugs
	Match string
}

// Engine enumerates, fetches and writes kernels under Destination.
type Engine struct {
	Client remote.Client
	// Destination is the local root; each kernel gets Destination/<slug>
	Destination string
	// Overwrite replaces existing local files instead of skipping them
	Overwrite bool
}

// Sync mirrors the kernels selected by opts. Listing failures and a missing
// explicit kernel are returned as errors; per-kernel fetch and write failures
// are recorded in the result.
func (e *Engine) Sync(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Kernel) != "" {
		return e.syncOne(ctx, opts)
	}
	kernels, err := e.Kernels(ctx, opts)
	if err != nil {
		return nil, err
	}
	return e.Pull(ctx, kernels), nil
}

func (e *Engine) syncOne(ctx context.Context, opts Options) (*Result, error) {
	ref, err := reference.ParseKernel(opts.Kernel, opts.Owner)
	if err != nil {
		return nil, err
	}
	files, err := e.Client.FetchKernelFiles(ctx, ref)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, &NotFoundError{Ref: ref.Slug(), Err: err}
		}
		return nil, fmt.Errorf("failed to fetch kernel %s: %w", ref.Slug(), err)
	}

	result := &Result{}
	kernel := model.NotebookDescriptor{Owner: ref.Owner, Slug: ref.Name, Files: files}
	result.Files = append(result.Files, e.write(ctx, kernel)...)
	return result, nil
}

// Kernels lists the owner's kernels and applies the visibility and Match
// filters. Private kernels survive only when IncludePrivate is set and the
// owner is the authenticated identity.
func (e *Engine) Kernels(ctx context.Context, opts Options) ([]model.NotebookDescriptor, error) {
	log := logging.WithContext(ctx)
	owner := strings.TrimSpace(opts.Owner)
	if owner == "" {
		return nil, errors.New("notebook owner is required")
	}
	if opts.Match != "" && !doublestar.ValidatePattern(opts.Match) {
		return nil, fmt.Errorf("invalid match pattern %q", opts.Match)
	}

	private := opts.IncludePrivate && owner == opts.Identity
	if opts.IncludePrivate && !private {
		log.Warn("private kernels are only listed for the authenticated user; showing public kernels",
			"owner", owner, "identity", opts.Identity)
	}

	listed, err := e.Client.ListKernels(ctx, owner, private)
	if err != nil {
		return nil, fmt.Errorf("failed to list kernels for %s: %w", owner, err)
	}

	var kernels []model.NotebookDescriptor
	for _, k := range listed {
		if k.IsPrivate && !private {
			continue
		}
		if opts.Match != "" {
			if ok, _ := doublestar.Match(opts.Match, k.Slug); !ok {
				continue
			}
		}
		kernels = append(kernels, k)
	}
	log.Debug("listed kernels", "owner", owner, logging.Count(len(kernels)))
	return kernels, nil
}

// Pull fetches and writes each kernel in order. A kernel that cannot be
// fetched is recorded as failed and the next one proceeds.
func (e *Engine) Pull(ctx context.Context, kernels []model.NotebookDescriptor) *Result {
	result := &Result{}
	for _, k := range kernels {
		if err := ctx.Err(); err != nil {
			result.Files = append(result.Files, FileResult{Kernel: k.Ref(), Action: ActionFailed, Err: err})
			continue
		}
		files, err := e.Client.FetchKernelFiles(ctx, k.Reference())
		if err != nil {
			logging.WithContext(ctx).Error("failed to fetch kernel", logging.Kernel(k.Ref()), logging.Err(err))
			result.Files = append(result.Files, FileResult{Kernel: k.Ref(), Action: ActionFailed, Err: err})
			continue
		}
		k.Files = files
		result.Files = append(result.Files, e.write(ctx, k)...)
	}
	return result
}

// write materializes kernel.Files under Destination/<slug>.
func (e *Engine) write(ctx context.Context, kernel model.NotebookDescriptor) []FileResult {
	log := logging.WithContext(ctx).With(logging.Kernel(kernel.Ref()))
	dir := filepath.Join(e.Destination, kernel.Slug)

	results := make([]FileResult, 0, len(kernel.Files))
	for _, f := range kernel.Files {
		fr := FileResult{Kernel: kernel.Ref(), Path: filepath.Join(kernel.Slug, filepath.FromSlash(f.Path))}
		action, err := e.writeFile(dir, f)
		if err != nil {
			fr.Action = ActionFailed
			fr.Err = err
			log.Error("failed to write notebook file", logging.Path(f.Path), logging.Err(err))
		} else {
			fr.Action = action
			if action == ActionSkipped {
				log.Info("file exists, skipping", logging.Path(fr.Path))
			} else {
				log.Debug("wrote notebook file", logging.Path(fr.Path), logging.Operation(string(action)))
			}
		}
		results = append(results, fr)
	}
	return results
}

func (e *Engine) writeFile(dir string, f model.NotebookFile) (Action, error) {
	if !filepath.IsLocal(filepath.FromSlash(f.Path)) {
		return "", fmt.Errorf("file path %q escapes the kernel directory", f.Path)
	}
	target, err := securejoin.SecureJoin(dir, filepath.FromSlash(f.Path))
	if err != nil {
		return "", err
	}

	action := ActionCreated
	if _, err := os.Lstat(target); err == nil {
		if !e.Overwrite {
			return ActionSkipped, nil
		}
		action = ActionUpdated
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat %q: %w", target, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("failed to create %q: %w", filepath.Dir(target), err)
	}
	if err := writeAtomic(target, f.Data); err != nil {
		return "", err
	}
	return action, nil
}

// writeAtomic writes data to a temp file beside path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("failed to replace %q: %w", path, err)
	}
	return nil
}
