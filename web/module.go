package web

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
)

const (
	Name = "web"
	// Listener is the name of the application listener.
	Listener = "application"
)

func Engine(c core.Container) *gin.Engine {
	return core.Get[*gin.Engine](c)
}

// Module serves the application API. Other modules add their routes to
// Engine(c) from their own Configure.
func Module(opts ...Option) core.Module {
	var options Options
	for _, o := range opts {
		o(&options)
	}
	return &webModule{opts: options}
}

type webModule struct {
	opts Options
}

func (m *webModule) Name() string        { return Name }
func (m *webModule) DependsOn() []string { return nil }

func (m *webModule) Configure(c core.Container, reg core.Registrar) error {
	cfg := core.Get[config.Root](c)
	l := core.Get[*slog.Logger](c)

	r := NewEngine(l, cfg.Server)
	if cfg.Server.CORS.Enabled {
		mw, err := CORS(cfg.Server.CORS)
		if err != nil {
			return err
		}
		r.Use(mw)
	}
	for _, mw := range m.opts.Middlewares {
		r.Use(mw)
	}

	r.GET("/readiness", Healthz)
	r.GET("/liveness", Healthz)
	for _, add := range m.opts.Routes {
		add(r)
	}

	core.Put[*gin.Engine](c, r)
	reg.AddListener(core.ListenerSpec{
		Name:         Listener,
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      r,
		Observers:    m.opts.Observers,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		DrainTimeout: cfg.Server.DrainTimeout,
	})
	return nil
}

// NewEngine returns a gin engine with the standard middleware chain and
// error fallbacks, shared by every listener.
func NewEngine(l *slog.Logger, srv config.ServerConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.ContextWithFallback = true

	r.Use(RequestID())
	r.Use(RouteTag())
	r.Use(RecoveryProblem(l))
	r.Use(AccessLog(l))
	r.Use(Timeout(srv.RequestTimeout))

	r.NoRoute(notFound)
	r.NoMethod(methodNotAllowed)
	return r
}
