package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/kagglesync/internal/report"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect resolved configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print resolved settings and where each came from",
				Description: `Settings are resolved from, highest precedence first: command-line
   overrides, the secrets file, the config file, KAGGLE_* environment variables
   and built-in defaults. The API key is masked.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "env",
						Usage:   "Output format: env, json, yaml, toml",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return runConfigShow(cmd)
				},
			},
		},
	}
}

func runConfigShow(cmd *cli.Command) error {
	format, err := report.ParseFormat(cmd.String("format"), report.SettingsFormats())
	if err != nil {
		return err
	}
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	return report.Settings(os.Stdout, settings, format)
}
