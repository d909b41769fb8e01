package actuator

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/metrics"
	"github.com/skekre98/chatlog/web"
)

const (
	Name = "actuator"
	// Listener is the name of the metrics listener.
	Listener = "metrics"
)

type module struct {
	observers []core.RequestObserver
}

// Module serves probes, build info and Prometheus metrics on their own
// listener, so scraping keeps working while the API is saturated.
func Module(observers ...core.RequestObserver) core.Module {
	return &module{observers: observers}
}

func (m *module) Name() string        { return Name }
func (m *module) DependsOn() []string { return nil }

func (m *module) Configure(c core.Container, reg core.Registrar) error {
	cfg := core.Get[config.Root](c)
	l := core.Get[*slog.Logger](c)
	started := time.Now()

	engine := web.NewEngine(l, cfg.Server)

	engine.GET("/readiness", web.Healthz)
	engine.GET("/liveness", web.Healthz)

	engine.GET("/info", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"app": gin.H{
				"name":    cfg.App.Name,
				"version": cfg.App.Version,
			},
			"runtime": gin.H{
				"go":           runtime.Version(),
				"numGoroutine": runtime.NumGoroutine(),
				"time":         time.Now().UTC().Format(time.RFC3339),
				"uptime":       time.Since(started).Round(time.Second).String(),
				"pid":          os.Getpid(),
			},
		})
	})

	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		if mx, ok := core.Lookup[*metrics.Metrics](c); ok {
			engine.GET(path, gin.WrapH(promhttp.HandlerFor(mx.Registry, promhttp.HandlerOpts{
				Registry:          mx.Registry,
				EnableOpenMetrics: true,
			})))
		} else {
			engine.GET(path, gin.WrapH(promhttp.Handler()))
		}
	}

	reg.AddListener(core.ListenerSpec{
		Name:         Listener,
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
		Handler:      engine,
		Observers:    m.observers,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		DrainTimeout: cfg.Server.DrainTimeout,
	})
	return nil
}
