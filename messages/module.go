package messages

import (
	"log/slog"

	"github.com/skekre98/chatlog/auth"
	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/web"
)

const Name = "messages"

// repositoryModule provides the Repository. It can't be imported from here
// since the postgres package depends on this one.
const repositoryModule = "postgres"

type module struct{}

// Module mounts the message API on the application listener. It expects a
// Repository and an *auth.Service in the container.
func Module() core.Module { return &module{} }

func (m *module) Name() string        { return Name }
func (m *module) DependsOn() []string { return []string{web.Name, repositoryModule} }

func (m *module) Configure(c core.Container, _ core.Registrar) error {
	cfg := core.Get[config.Root](c)
	h := NewHandler(
		core.Get[Repository](c),
		core.Get[*auth.Service](c),
		cfg.Auth.DefaultUserID,
		core.Get[*slog.Logger](c),
	)
	h.Register(web.Engine(c))
	return nil
}
