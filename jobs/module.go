package jobs

import (
	"log/slog"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/messages"
	"github.com/skekre98/chatlog/metrics"
	"github.com/skekre98/chatlog/postgres"
)

const Name = "jobs"

type module struct{}

// Module registers the background processes: the digest job when enabled,
// and config reloading when a *config.Manager is in the container.
func Module() core.Module { return &module{} }

func (m *module) Name() string        { return Name }
func (m *module) DependsOn() []string { return []string{postgres.Name} }

func (m *module) Configure(c core.Container, reg core.Registrar) error {
	cfg := core.Get[config.Root](c)
	l := core.Get[*slog.Logger](c)

	if cfg.Jobs.Digest.Enabled {
		var runs RunRecorder
		if mx, ok := core.Lookup[*metrics.Metrics](c); ok {
			runs = mx
		}
		reg.AddProcess(NewDigest(core.Get[messages.Repository](c), cfg.Jobs.Digest, l, runs))
	}
	if mgr, ok := core.Lookup[*config.Manager](c); ok {
		level, _ := core.Lookup[*slog.LevelVar](c)
		reg.AddProcess(NewConfigReload(mgr, level, l))
	}
	return nil
}
