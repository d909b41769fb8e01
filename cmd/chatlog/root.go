package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/config/source"
	"github.com/skekre98/chatlog/logging"
)

// rootOptions are the flags shared by every subcommand. Configuration
// values themselves are passed as dotted flags (--server.port=9000) and
// picked up by the CLI config source.
type rootOptions struct {
	configDir string
	profile   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chatlog",
		Short:         "Chat message log service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "configs", "directory holding application.yaml and profile overlays")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile overlay to apply, e.g. dev or prod")

	cmd.AddCommand(newServeCmd(opts), newWorkerCmd(opts), newMigrateCmd(opts))
	return cmd
}

// environment is what every subcommand starts from.
type environment struct {
	cfg    *config.Root
	mgr    *config.Manager
	logger *slog.Logger
	// level is the logger's level, updated on config reload.
	level *slog.LevelVar
}

// load binds defaults, files, environment and command line, in that order
// of precedence, and builds the logger from the result.
func (o *rootOptions) load(args []string) (*environment, error) {
	cfg := &config.Root{}
	mgr, err := config.NewManager(cfg, config.Options{Defaults: config.Defaults()},
		&source.FileSource{BasePath: o.configDir, Profile: o.profile},
		&source.EnvSource{},
		&source.CLISource{Args: args},
	)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	logger, err := logging.NewLeveled(os.Stdout, cfg.Logging, level)
	if err != nil {
		return nil, err
	}
	logger = logger.With(
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)
	return &environment{cfg: cfg, mgr: mgr, logger: logger, level: level}, nil
}
