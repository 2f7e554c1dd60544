package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/kagglesync/internal/config"
	"github.com/klauern/kagglesync/internal/kernel"
	"github.com/klauern/kagglesync/internal/ui"
)

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Publish a local notebook as a kernel",
		UsageText: "kagglesync push --notebook <path> [options]",
		Description: `Build kernel-metadata.json for a notebook and push it.

   The title defaults to one derived from the file name and the slug to the
   normalized title. When both are given the title is adjusted to match the
   slug.

   Examples:
     kagglesync push --notebook dev/exp001/exp001.ipynb
     kagglesync push --notebook train.py --slug exp002 --enable-gpu
     kagglesync push --notebook exp.ipynb --dataset acme/weather --dry-run`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "notebook",
				Aliases:  []string{"n"},
				Usage:    "Notebook or script to push",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "slug",
				Usage: "Kernel slug (default: derived from the title)",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Kernel title (default: derived from the file name)",
			},
			&cli.StringFlag{
				Name:  "competition",
				Usage: "Competition to attach (default: KAGGLE_COMPETITION)",
			},
			&cli.StringSliceFlag{
				Name:  "dataset",
				Usage: "Dataset to attach as owner/name (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "enable-gpu",
				Usage: "Run the kernel with a GPU accelerator",
			},
			&cli.BoolFlag{
				Name:  "enable-internet",
				Usage: "Allow internet access from the kernel",
			},
			&cli.BoolFlag{
				Name:  "private",
				Usage: "Create the kernel as private",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the metadata without pushing",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runPush(ctx, cmd)
		},
	}
}

func parsePushRequest(cmd *cli.Command, settings *config.Settings) kernel.Request {
	req := kernel.Request{
		NotebookPath:   cmd.String("notebook"),
		Title:          cmd.String("title"),
		Slug:           cmd.String("slug"),
		Competition:    cmd.String("competition"),
		Datasets:       cmd.StringSlice("dataset"),
		EnableGPU:      cmd.Bool("enable-gpu"),
		EnableInternet: cmd.Bool("enable-internet"),
		Private:        cmd.Bool("private"),
	}
	if req.Competition == "" {
		req.Competition = settings.Value(config.KeyCompetition)
	}
	return req
}

func runPush(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	req := parsePushRequest(cmd, settings)

	if cmd.Bool("dry-run") {
		b := &kernel.Builder{Owner: settings.Value(config.KeyUsername)}
		_, data, err := b.Build(req)
		if err != nil {
			return err
		}
		fmt.Println(ui.Info("Dry run: kernel would be pushed with this metadata"))
		_, err = os.Stdout.Write(data)
		return err
	}

	client, identity, err := clientFor(cmd, settings)
	if err != nil {
		return err
	}

	b := &kernel.Builder{Client: client, Owner: identity}
	res, err := b.Push(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(ui.StatusSuccess(fmt.Sprintf("Kernel push complete. Track execution at %s", res.URL)))
	return nil
}
