package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/kagglesync/internal/archive"
	"github.com/klauern/kagglesync/internal/download"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/progress"
	"github.com/klauern/kagglesync/internal/report"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download competition data and input datasets",
		UsageText: "kagglesync download [options]",
		Description: `Download the configured competition archive and every dataset listed in
   KAGGLE_INPUT_DATASETS, expanding each into its own directory.

   Populated directories are skipped unless --force is given.

   Examples:
     kagglesync download
     kagglesync --competition titanic download --destination ./input
     kagglesync --datasets acme/weather:raw download --skip-competition`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "destination",
				Aliases: []string{"d"},
				Usage:   "Competition directory (default: <download-dir>/<competition>)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-download targets whose directory is already populated",
			},
			&cli.BoolFlag{
				Name:  "skip-competition",
				Usage: "Only download datasets",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format: table, json, yaml, markdown",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDownload(ctx, cmd)
		},
	}
}

type downloadConfig struct {
	opts   download.Options
	force  bool
	format report.Format
}

func parseDownloadConfig(cmd *cli.Command) (*downloadConfig, error) {
	format, err := report.ParseFormat(cmd.String("format"), report.ResultFormats())
	if err != nil {
		return nil, err
	}
	return &downloadConfig{
		opts: download.Options{
			SkipCompetition: cmd.Bool("skip-competition"),
			Destination:     cmd.String("destination"),
		},
		force:  cmd.Bool("force"),
		format: format,
	}, nil
}

func runDownload(ctx context.Context, cmd *cli.Command) error {
	cfg, err := parseDownloadConfig(cmd)
	if err != nil {
		return err
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	targets, err := download.Plan(settings, cfg.opts)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("Nothing to download")
		return nil
	}

	client, _, err := clientFor(cmd, settings)
	if err != nil {
		return err
	}

	m := &archive.Materializer{
		Client: client,
		Force:  cfg.force,
		Track: func(target model.DownloadTarget, size int64) archive.Tracker {
			return progress.Transfer(target.String(), size)
		},
	}

	logging.WithContext(ctx).Info("downloading targets", logging.Count(len(targets)))
	res := download.Run(ctx, m, targets)

	if err := report.Downloads(os.Stdout, res, cfg.format); err != nil {
		return err
	}
	if failed := len(res.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed: %w", failed, len(res.Items), res.Err())
	}
	return nil
}
