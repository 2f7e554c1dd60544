// Package download plans and runs a batch of archive downloads: the
// configured competition plus every configured input dataset.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/klauern/kagglesync/internal/archive"
	"github.com/klauern/kagglesync/internal/config"
	"github.com/klauern/kagglesync/internal/destination"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/reference"
	"github.com/klauern/kagglesync/internal/util"
)

// Options adjusts how targets are planned.
type Options struct {
	// SkipCompetition leaves the competition archive out of the plan
	SkipCompetition bool
	// Destination overrides the competition's local directory
	Destination string
}

// Plan builds the download targets for settings. The competition comes
// first when configured; datasets follow in list order. A malformed dataset
// entry fails the whole plan.
func Plan(settings *config.Settings, opts Options) ([]model.DownloadTarget, error) {
	competition := ""
	if !opts.SkipCompetition {
		if err := settings.Require(config.KeyCompetition); err != nil {
			return nil, err
		}
		competition = settings.Value(config.KeyCompetition)
	}

	datasets, err := reference.ParseList(settings.Value(config.KeyInputDatasets))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.KeyInputDatasets, err)
	}

	root := util.ExpandPath(settings.Value(config.KeyDownloadDir), "")
	if root == "" {
		root = config.DefaultDownloadDir
	}
	override := util.ExpandPath(opts.Destination, "")

	targets := destination.New(root).Targets(competition, datasets, override)
	logging.Debug("planned downloads", logging.Count(len(targets)), logging.Path(root))
	return targets, nil
}

// Materializer is the part of archive.Materializer that Run needs.
type Materializer interface {
	Materialize(ctx context.Context, target model.DownloadTarget) (*archive.Outcome, error)
	Refresh(ctx context.Context, target model.DownloadTarget) (*archive.Outcome, error)
}

// Run materializes every target in order. A failing target is recorded and
// the batch moves on; Run itself never fails. Cancellation marks the
// remaining targets as failed. When two targets share a directory, the one
// later in the batch is expanded over the earlier one's files.
func Run(ctx context.Context, m Materializer, targets []model.DownloadTarget) *Result {
	result := &Result{Items: make([]ItemResult, 0, len(targets))}
	filled := make(map[string]string)
	for _, target := range targets {
		item := ItemResult{Target: target}
		if err := ctx.Err(); err != nil {
			item.Action = ActionFailed
			item.Err = err
			result.Items = append(result.Items, item)
			continue
		}

		dir := filepath.Clean(target.LocalPath)
		var out *archive.Outcome
		var err error
		if earlier, ok := filled[dir]; ok {
			logging.WithContext(ctx).Info("destination shared with an earlier target, replacing",
				logging.Resource(target.String()), slog.String("earlier", earlier), logging.Path(dir))
			out, err = m.Refresh(ctx, target)
		} else {
			out, err = m.Materialize(ctx, target)
		}
		switch {
		case err != nil:
			item.Action = ActionFailed
			item.Err = err
			logging.WithContext(ctx).Error("download failed",
				logging.Resource(target.String()), logging.Err(err))
		case out.Action == archive.ActionSkipped:
			item.Action = ActionSkipped
		default:
			item.Action = ActionDownloaded
			item.Files = out.Files
			item.Bytes = out.Bytes
			filled[dir] = target.String()
		}
		result.Items = append(result.Items, item)
	}
	return result
}
