package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/skekre98/chatlog/actuator"
	"github.com/skekre98/chatlog/auth"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/jobs"
	"github.com/skekre98/chatlog/messages"
	"github.com/skekre98/chatlog/metrics"
	"github.com/skekre98/chatlog/postgres"
	"github.com/skekre98/chatlog/telemetry"
	"github.com/skekre98/chatlog/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [--section.key=value ...]",
		Short: "Run the HTTP API, the metrics listener and background jobs",
		// Dotted configuration flags are not declared on the command.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, apiModules)
		},
	}
}

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                "worker [--section.key=value ...]",
		Short:              "Run only the background jobs and the metrics listener",
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, workerModules)
		},
	}
}

// composition returns the modules a subcommand runs. It may seed the
// container with what those modules need.
type composition func(env *environment, c core.Container, mx *metrics.Metrics) ([]core.Module, error)

func run(ctx context.Context, opts *rootOptions, compose composition) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := opts.load(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger

	var mx *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		mx = metrics.New()
	}

	app := core.NewApp(logger, core.Options{
		PrepareTimeout:    cfg.Lifecycle.PrepareTimeout,
		FatalWorkerErrors: cfg.Lifecycle.FatalWorkerErrors,
	})
	mods, err := compose(env, app.Container, mx)
	if err != nil {
		return err
	}
	app.Modules = mods

	shutdownTracing, err := telemetry.Init(ctx, cfg.Observability.Tracing, cfg.App)
	if err != nil {
		return err
	}
	app.OnClose("tracing", func() error { return shutdownTracing(context.Background()) })

	core.Put(app.Container, *cfg)
	core.Put(app.Container, logger)
	core.Put(app.Container, env.mgr)
	core.Put(app.Container, env.level)
	if mx != nil {
		core.Put(app.Container, mx)
	}

	out := app.Run(ctx)
	if !out.OK() {
		logger.Error("service stopped", "outcome", out.Kind.String(), "cause", out.Cause)
		return &exitError{code: out.ExitCode(), err: out.Err}
	}
	logger.Info("service stopped", "outcome", out.Kind.String())
	return nil
}

// apiModules is the full service. Observers are attached only for the
// observability backends that are enabled.
func apiModules(env *environment, c core.Container, mx *metrics.Metrics) ([]core.Module, error) {
	tokens, err := auth.NewService(env.cfg.Auth)
	if err != nil {
		return nil, err
	}
	core.Put(c, tokens)

	var appObservers []core.RequestObserver
	if mx != nil {
		appObservers = append(appObservers, mx.Observer(web.Listener))
	}
	if env.cfg.Observability.Tracing.Enabled {
		appObservers = append(appObservers, telemetry.Observer(web.Listener, nil))
	}

	return []core.Module{
		web.Module(web.WithObservers(appObservers...)),
		actuator.Module(metricsObservers(mx)...),
		postgres.Module(),
		messages.Module(),
		jobs.Module(),
	}, nil
}

// workerModules runs the jobs without the API listener.
func workerModules(_ *environment, _ core.Container, mx *metrics.Metrics) ([]core.Module, error) {
	return []core.Module{
		actuator.Module(metricsObservers(mx)...),
		postgres.Module(),
		jobs.Module(),
	}, nil
}

func metricsObservers(mx *metrics.Metrics) []core.RequestObserver {
	if mx == nil {
		return nil
	}
	return []core.RequestObserver{mx.Observer(actuator.Listener)}
}
