// Package cli provides the command-line interface for kagglesync.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/kagglesync/internal/config"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/remote"
	"github.com/klauern/kagglesync/internal/remote/kaggle"
	"github.com/klauern/kagglesync/internal/ui"
	"github.com/klauern/kagglesync/internal/util"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// newClient builds the platform client from resolved settings and returns
// the authenticated identity. Tests replace it with a mock.
var newClient = func(s *config.Settings, opts ...kaggle.Option) (remote.Client, string, error) {
	username, key, err := s.Credentials()
	if err != nil {
		return nil, "", err
	}
	return kaggle.New(username, key, opts...), username, nil
}

// clientFor applies command-level client options and calls newClient.
func clientFor(cmd *cli.Command, s *config.Settings) (remote.Client, string, error) {
	var opts []kaggle.Option
	if u := cmd.Root().String("api-url"); u != "" {
		logging.Debug("using alternate api root", slog.String("url", u))
		opts = append(opts, kaggle.WithBaseURL(u))
	}
	return newClient(s, opts...)
}

// overrideFlags maps command-line flags to the settings they override.
var overrideFlags = []struct {
	flag  string
	key   config.Key
	usage string
}{
	{flag: "competition", key: config.KeyCompetition, usage: "Competition identifier"},
	{flag: "download-dir", key: config.KeyDownloadDir, usage: "Root directory for downloaded inputs"},
	{flag: "datasets", key: config.KeyInputDatasets, usage: "Comma-separated dataset references (owner/name[:subpath])"},
	{flag: "owner", key: config.KeyNotebookOwner, usage: "Account whose notebooks are mirrored"},
	{flag: "notebook-dir", key: config.KeyNotebookDir, usage: "Root directory for mirrored notebooks"},
	{flag: "username", key: config.KeyUsername, usage: "Kaggle username"},
	{flag: "key", key: config.KeyKey, usage: "Kaggle API key"},
}

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable verbose output (info level logging)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug output (debug level logging, implies verbose)",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.StringFlag{
			Name:  "config",
			Value: config.DefaultConfigPath,
			Usage: "Shared settings file (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "secrets",
			Value: config.DefaultSecretsPath,
			Usage: "Private credentials file (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Kaggle API root",
			Sources: cli.EnvVars("KAGGLESYNC_API_URL"),
			Hidden:  true,
		},
	}
	for _, o := range overrideFlags {
		flags = append(flags, &cli.StringFlag{
			Name:     o.flag,
			Usage:    o.usage + " (overrides " + string(o.key) + ")",
			Category: "settings",
		})
	}

	app := &cli.Command{
		Name:    "kagglesync",
		Usage:   "Download competition data, mirror notebooks and push kernels to Kaggle",
		Version: Version,
		Flags:   flags,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configureColors(cmd)
			return configureLogging(ctx, cmd)
		},
		Commands: []*cli.Command{
			downloadCommand(),
			notebooksCommand(),
			pushCommand(),
			configCommand(),
			versionCommand(),
		},
	}
	return app.Run(ctx, args)
}

// configureColors sets up color output based on CLI flags.
func configureColors(cmd *cli.Command) {
	if cmd.Bool("no-color") {
		ui.DisableColors()
	}
}

// configureLogging sets up the logging level based on CLI flags and attaches
// the logger to the command context.
func configureLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	opts := logging.DefaultOptions()

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") {
		opts.Level = slog.LevelInfo
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logging.Debug("logging configured", slog.String("level", opts.Level.String()))

	return logging.NewContext(ctx, logger), nil
}

// loadSettings resolves settings for one invocation. The default config and
// secrets files are optional; a path given explicitly must be readable.
// Global flags are read from the root so subcommand flags of the same name
// do not shadow them.
func loadSettings(cmd *cli.Command) (*config.Settings, error) {
	root := cmd.Root()
	src := config.Sources{
		ConfigPath:  settingsFile(root, "config"),
		SecretsPath: settingsFile(root, "secrets"),
		Overrides:   make(map[config.Key]string),
		LookupEnv:   os.LookupEnv,
	}
	for _, o := range overrideFlags {
		if root.IsSet(o.flag) {
			src.Overrides[o.key] = root.String(o.flag)
		}
	}
	return config.Resolve(src)
}

func settingsFile(cmd *cli.Command, flag string) string {
	path := util.ExpandPath(cmd.String(flag), "")
	if !cmd.IsSet(flag) && !util.FileExists(path) {
		logging.Debug("optional settings file not found", logging.Path(path))
		return ""
	}
	return path
}
