package postgres

import (
	"context"
	"log/slog"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/messages"
)

const Name = "postgres"

type module struct{}

// Module opens the pool, provides the messages.Repository and closes the
// pool once the service has drained.
func Module() core.Module { return &module{} }

func (m *module) Name() string        { return Name }
func (m *module) DependsOn() []string { return nil }

func (m *module) Configure(c core.Container, reg core.Registrar) error {
	cfg := core.Get[config.Root](c)
	l := core.Get[*slog.Logger](c)

	pool, err := Open(context.Background(), cfg.Postgres, l)
	if err != nil {
		return err
	}
	reg.OnClose("postgres pool", func() error {
		pool.Close()
		return nil
	})

	core.Put(c, pool)
	core.Put[messages.Repository](c, NewMessages(pool, cfg.Postgres.Schema))
	return nil
}
