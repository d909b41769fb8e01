package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/skekre98/chatlog/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                "migrate [--postgres.key=value ...]",
		Short:              "Apply pending database migrations and exit",
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, err := opts.load(os.Args[1:])
			if err != nil {
				return err
			}
			return postgres.Migrate(ctx, env.cfg.Postgres, env.logger)
		},
	}
}
