package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/klauern/kagglesync/internal/config"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/notebook"
	"github.com/klauern/kagglesync/internal/report"
	"github.com/klauern/kagglesync/internal/ui/tui"
	"github.com/klauern/kagglesync/internal/util"
)

func notebooksCommand() *cli.Command {
	return &cli.Command{
		Name:    "notebooks",
		Aliases: []string{"nb"},
		Usage:   "Mirror remote notebooks into the local working directory",
		Commands: []*cli.Command{
			notebooksPullCommand(),
		},
	}
}

func notebooksPullCommand() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "Fetch notebook source files into <notebook-dir>/<slug>/",
		UsageText: "kagglesync notebooks pull [options]",
		Description: `Pull the notebooks owned by KAGGLE_NOTEBOOK_OWNER (or the credential
   username). Existing local files are kept unless --overwrite is given.

   Private notebooks are only listed when the owner is the authenticated user.

   Examples:
     kagglesync notebooks pull
     kagglesync notebooks pull --kernel acme/exp001
     kagglesync notebooks pull --match 'exp*' --overwrite
     kagglesync notebooks pull --interactive`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kernel",
				Aliases: []string{"k"},
				Usage:   "Pull a single kernel (owner/slug or slug)",
			},
			&cli.StringFlag{
				Name:    "destination",
				Aliases: []string{"d"},
				Usage:   "Local root for notebooks (default: KAGGLE_NOTEBOOK_DIR)",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Replace local files that already exist",
			},
			&cli.BoolFlag{
				Name:  "include-private",
				Usage: "Include private notebooks when pulling your own account",
			},
			&cli.StringFlag{
				Name:    "match",
				Aliases: []string{"m"},
				Usage:   "Only pull kernels whose slug matches this glob",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Choose kernels from an interactive list",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format: table, json, yaml, markdown",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runNotebooksPull(ctx, cmd)
		},
	}
}

type notebooksConfig struct {
	opts        notebook.Options
	destination string
	overwrite   bool
	interactive bool
	format      report.Format
}

func parseNotebooksConfig(cmd *cli.Command, settings *config.Settings) (*notebooksConfig, error) {
	format, err := report.ParseFormat(cmd.String("format"), report.ResultFormats())
	if err != nil {
		return nil, err
	}

	cfg := &notebooksConfig{
		opts: notebook.Options{
			Owner:          settings.NotebookOwner(),
			Kernel:         cmd.String("kernel"),
			IncludePrivate: cmd.Bool("include-private"),
			Match:          cmd.String("match"),
		},
		destination: cmd.String("destination"),
		overwrite:   cmd.Bool("overwrite"),
		interactive: cmd.Bool("interactive"),
		format:      format,
	}
	if cfg.destination == "" {
		cfg.destination = settings.Value(config.KeyNotebookDir)
	}
	if cfg.destination == "" {
		cfg.destination = config.DefaultNotebookDir
	}
	cfg.destination = util.ExpandPath(cfg.destination, "")

	if cfg.interactive && cfg.opts.Kernel != "" {
		return nil, errors.New("cannot use both --interactive and --kernel")
	}
	return cfg, nil
}

func runNotebooksPull(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	cfg, err := parseNotebooksConfig(cmd, settings)
	if err != nil {
		return err
	}

	client, identity, err := clientFor(cmd, settings)
	if err != nil {
		return err
	}
	cfg.opts.Identity = identity

	engine := &notebook.Engine{
		Client:      client,
		Destination: cfg.destination,
		Overwrite:   cfg.overwrite,
	}

	var res *notebook.Result
	if cfg.interactive {
		res, err = pullInteractive(ctx, engine, cfg.opts)
	} else {
		res, err = engine.Sync(ctx, cfg.opts)
	}
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	if err := report.Notebooks(os.Stdout, res, cfg.format); err != nil {
		return err
	}
	if failed := len(res.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed: %w", failed, len(res.Files), res.Err())
	}
	return nil
}

// pullInteractive lists kernels, lets the user pick, and pulls the
// selection. A nil result means the user quit.
func pullInteractive(ctx context.Context, engine *notebook.Engine, opts notebook.Options) (*notebook.Result, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("--interactive requires a terminal")
	}

	kernels, err := engine.Kernels(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(kernels) == 0 {
		fmt.Println("No notebooks found")
		return nil, nil
	}

	picked, err := tui.RunKernelList(kernels)
	if err != nil {
		return nil, fmt.Errorf("kernel picker failed: %w", err)
	}
	if picked.Action != tui.KernelListActionPull || len(picked.Selected) == 0 {
		logging.WithContext(ctx).Info("pull cancelled")
		fmt.Println("Cancelled")
		return nil, nil
	}
	return engine.Pull(ctx, picked.Selected), nil
}
