// Package kernel builds kernel-metadata.json descriptors for local notebooks
// and pushes them to the platform.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/reference"
	"github.com/klauern/kagglesync/internal/remote"
	"github.com/klauern/kagglesync/internal/slug"
)

// MetadataFile is the descriptor name the platform expects beside the code.
const MetadataFile = "kernel-metadata.json"

// BaseURL is where pushed kernels can be viewed.
const BaseURL = "https://www.kaggle.com/code/"

// URL returns the page of the kernel with the given owner/slug id.
func URL(id string) string {
	return BaseURL + id
}

// Request describes a notebook to publish.
type Request struct {
	NotebookPath string
	// Title defaults to one derived from the notebook file name
	Title string
	// Slug defaults to the normalized title
	Slug        string
	Competition string
	// Datasets are owner/name references attached as data sources
	Datasets       []string
	EnableGPU      bool
	EnableInternet bool
	Private        bool
}

// Builder turns requests into metadata for kernels owned by Owner.
type Builder struct {
	Client remote.Client
	Owner  string
}

// Build validates req and returns the metadata together with its JSON
// encoding. Slug and title are reconciled so the title always normalizes to
// the slug.
func (b *Builder) Build(req Request) (*model.KernelMetadata, []byte, error) {
	owner := strings.TrimSpace(b.Owner)
	if owner == "" {
		return nil, nil, &ValidationError{Field: "owner", Message: "kernel owner is not configured"}
	}

	if err := checkNotebook(req.NotebookPath); err != nil {
		return nil, nil, err
	}
	lang, kind, ok := model.DetectKernelFile(req.NotebookPath)
	if !ok {
		return nil, nil, &ValidationError{Field: "notebook", Message: fmt.Sprintf("unsupported file type %q", filepath.Ext(req.NotebookPath))}
	}

	s, title, err := resolveNames(req)
	if err != nil {
		return nil, nil, err
	}

	datasets := make([]string, 0, len(req.Datasets))
	for _, d := range req.Datasets {
		ref, err := reference.Parse(d)
		if err != nil {
			return nil, nil, &ValidationError{Field: "dataset", Message: "bad dataset source", Err: err}
		}
		datasets = append(datasets, ref.Slug())
	}
	competitions := []string{}
	if c := strings.TrimSpace(req.Competition); c != "" {
		competitions = append(competitions, c)
	}

	meta := &model.KernelMetadata{
		ID:                 owner + "/" + s,
		Title:              title,
		CodeFile:           filepath.Base(req.NotebookPath),
		Language:           lang,
		KernelType:         kind,
		IsPrivate:          req.Private,
		EnableGPU:          req.EnableGPU,
		EnableInternet:     req.EnableInternet,
		Keywords:           []string{},
		DatasetSources:     datasets,
		CompetitionSources: competitions,
		KernelSources:      []string{},
		ModelSources:       []string{},
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode kernel metadata: %w", err)
	}
	return meta, append(data, '\n'), nil
}

// checkNotebook verifies path names a regular file the process can open.
func checkNotebook(path string) error {
	// #nosec G304 - path is the notebook the user asked to push
	f, err := os.Open(path)
	if err != nil {
		return &ValidationError{Field: "notebook", Message: fmt.Sprintf("cannot read %q", path), Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &ValidationError{Field: "notebook", Message: fmt.Sprintf("cannot read %q", path), Err: err}
	}
	if info.IsDir() {
		return &ValidationError{Field: "notebook", Message: fmt.Sprintf("%q is a directory", path)}
	}
	return nil
}

// resolveNames fills in the slug and title and makes them agree.
func resolveNames(req Request) (string, string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = slug.TitleFromFilename(req.NotebookPath)
	}

	raw := strings.TrimSpace(req.Slug)
	s := raw
	if s == "" {
		s = slug.Normalize(title)
	} else if n := slug.Normalize(raw); n != raw {
		logging.Warn("normalized kernel slug", "given", raw, "slug", n)
		s = n
	}
	if s == "" {
		return "", "", &ValidationError{Field: "slug", Message: "slug is empty after normalization"}
	}

	if fixed, changed := slug.Reconcile(s, title); changed {
		logging.Info("adjusted kernel title to match slug", "title", fixed, "slug", s)
		title = fixed
	}
	return s, title, nil
}

// Push builds the metadata, lays out the descriptor and a copy of the
// notebook in a temporary directory and hands it to the client. The
// directory is removed whatever the outcome.
func (b *Builder) Push(ctx context.Context, req Request) (*remote.PushResult, error) {
	meta, data, err := b.Build(req)
	if err != nil {
		return nil, err
	}
	log := logging.WithContext(ctx).With(logging.Kernel(meta.ID))

	dir, err := os.MkdirTemp("", "kagglesync-kernel-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create push directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove push directory", logging.Path(dir), logging.Err(err))
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", MetadataFile, err)
	}
	if err := copyFile(req.NotebookPath, filepath.Join(dir, meta.CodeFile)); err != nil {
		return nil, err
	}

	log.Info("pushing kernel", logging.Path(req.NotebookPath))
	res, err := b.Client.PushKernel(ctx, meta, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to push kernel %s: %w", meta.ID, err)
	}
	if res.URL == "" {
		res.URL = URL(meta.ID)
	}
	if res.Ref == "" {
		res.Ref = meta.ID
	}
	return res, nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - src is the notebook the user asked to push
	in, err := os.Open(src)
	if err != nil {
		return &ValidationError{Field: "notebook", Message: fmt.Sprintf("cannot read %q", src), Err: err}
	}
	defer in.Close()

	// #nosec G304 - dst lives in a directory we just created
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %q: %w", src, err)
	}
	return out.Close()
}
