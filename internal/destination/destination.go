// Package destination computes where downloaded resources land on disk. It
// never touches the filesystem; directories are created by the archive
// materializer.
package destination

import (
	"path/filepath"
	"strings"

	"github.com/klauern/kagglesync/internal/model"
)

// Resolver maps references to local directories under Root.
type Resolver struct {
	// Root is the default download (input) root
	Root string
}

// New returns a Resolver rooted at root.
func New(root string) Resolver {
	return Resolver{Root: root}
}

// Dataset resolves a dataset reference. Resolution order: a non-empty
// override, then Root/<subpath>, then Root/<owner>/<name>.
func (r Resolver) Dataset(ref model.Reference, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return filepath.Clean(o)
	}
	if ref.HasSubpath() {
		return filepath.Join(r.Root, filepath.FromSlash(ref.Subpath))
	}
	return filepath.Join(r.Root, ref.Owner, ref.Name)
}

// Competition resolves a single-segment competition id to Root/<id>, unless
// override is set.
func (r Resolver) Competition(id, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return filepath.Clean(o)
	}
	return filepath.Join(r.Root, id)
}

// Targets builds one DownloadTarget for the competition (when non-empty) and
// one per dataset, in order. The override applies to the competition only.
func (r Resolver) Targets(competition string, datasets []model.Reference, competitionOverride string) []model.DownloadTarget {
	targets := make([]model.DownloadTarget, 0, len(datasets)+1)
	if id := strings.TrimSpace(competition); id != "" {
		targets = append(targets, model.DownloadTarget{
			Kind:      model.KindCompetition,
			Reference: model.Reference{Name: id},
			LocalPath: r.Competition(id, competitionOverride),
		})
	}
	for _, ref := range datasets {
		targets = append(targets, model.DownloadTarget{
			Kind:      model.KindDataset,
			Reference: ref,
			LocalPath: r.Dataset(ref, ""),
		})
	}
	return targets
}
