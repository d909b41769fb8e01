package jobs

import (
	"context"
	"log/slog"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/logging"
)

// ConfigReload watches the configuration sources and reloads on change.
// Modules copy their settings when they are configured, so a reload only
// takes effect live for the log level; other changed keys are logged and
// apply on the next start. An invalid update is logged and the previous
// configuration stays in effect.
type ConfigReload struct {
	mgr    *config.Manager
	level  *slog.LevelVar
	logger *slog.Logger
	events chan config.Event
}

var _ core.Process = (*ConfigReload)(nil)

// NewConfigReload returns the reload process. level may be nil, in which
// case the log level is not updated.
func NewConfigReload(mgr *config.Manager, level *slog.LevelVar, logger *slog.Logger) *ConfigReload {
	return &ConfigReload{
		mgr:    mgr,
		level:  level,
		logger: logger.With("process", "config-reload"),
		events: make(chan config.Event, 8),
	}
}

func (r *ConfigReload) Name() string { return "config-reload" }

func (r *ConfigReload) Prepare(context.Context) error {
	r.mgr.Subscribe(r.events)
	return nil
}

func (r *ConfigReload) Run(ctx context.Context) error {
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- r.mgr.Watch(ctx, func(err error) {
			r.logger.Error("config reload rejected", "error", err)
		})
	}()

	for {
		select {
		case evt := <-r.events:
			r.logger.Info("config reloaded", "changed", evt.ChangedKeys)
			r.applyLevel(evt)
		case err := <-watchErr:
			return err
		}
	}
}

func (r *ConfigReload) applyLevel(evt config.Event) {
	root, ok := evt.NewConfig.(*config.Root)
	if r.level == nil || !ok {
		return
	}
	lvl, err := logging.ParseLevel(root.Logging.Level)
	if err != nil {
		r.logger.Warn("keeping log level", "error", err)
		return
	}
	if lvl != r.level.Level() {
		r.level.Set(lvl)
		r.logger.Info("log level changed", "level", lvl.String())
	}
}
