package core_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/chatlog/core"
)

// countingHandler counts the requests it served.
type countingHandler struct{ served atomic.Int32 }

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.served.Add(1)
	_, _ = io.WriteString(w, "OK")
}

func openListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func assertFree(t *testing.T, addr string) {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "address %s still held after Run returned", addr)
	_ = ln.Close()
}

func runAsync(ctx context.Context, app *core.App) <-chan core.Outcome {
	out := make(chan core.Outcome, 1)
	go func() { out <- app.Run(ctx) }()
	return out
}

func awaitOutcome(t *testing.T, ch <-chan core.Outcome) core.Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return core.Outcome{}
	}
}

func TestApp_MetricsBindFailure(t *testing.T) {
	t.Parallel()

	appAddr := freeAddr(t)
	metricsAddr := occupiedAddr(t)
	handler := &countingHandler{}
	proc := &fakeProcess{name: "digest"}
	cleaned := 0

	app := core.NewApp(discardLogger(), core.Options{})
	app.AddListener(core.ListenerSpec{Name: "application", Addr: appAddr, Handler: handler})
	app.AddListener(core.ListenerSpec{Name: "metrics", Addr: metricsAddr, Handler: handler})
	app.AddProcess(proc)
	app.OnClose("pool", func() error { cleaned++; return nil })

	out := app.Run(context.Background())

	assert.Equal(t, core.OutcomeListenerFailure, out.Kind)
	var bindErr *core.BindError
	require.ErrorAs(t, out.Err, &bindErr)
	assert.Equal(t, "metrics", bindErr.Listener)
	assert.Contains(t, out.Cause, "metrics")
	assert.Equal(t, 1, out.ExitCode())

	assert.Zero(t, handler.served.Load())
	assert.Zero(t, proc.prepared.Load())
	assert.Zero(t, proc.runs.Load())
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, core.StateTerminated, app.State())
	assertFree(t, appAddr)
}

func TestApp_PreparationFailure(t *testing.T) {
	t.Parallel()

	appAddr, metricsAddr := freeAddr(t), freeAddr(t)
	handler := &countingHandler{}
	healthy := &fakeProcess{name: "healthy"}
	broken := &fakeProcess{name: "broken", prepareErr: errBoom}
	cleaned := 0

	app := core.NewApp(discardLogger(), core.Options{PrepareTimeout: time.Second})
	app.AddListener(core.ListenerSpec{Name: "application", Addr: appAddr, Handler: handler})
	app.AddListener(core.ListenerSpec{Name: "metrics", Addr: metricsAddr, Handler: handler})
	app.AddProcess(healthy)
	app.AddProcess(broken)
	app.OnClose("pool", func() error { cleaned++; return nil })

	out := app.Run(context.Background())

	assert.Equal(t, core.OutcomePreparationFailure, out.Kind)
	var perr *core.PreparationError
	require.ErrorAs(t, out.Err, &perr)
	assert.Equal(t, "broken", perr.Process)
	assert.ErrorIs(t, out.Err, errBoom)

	assert.Zero(t, healthy.runs.Load())
	assert.Zero(t, broken.runs.Load())
	assert.Zero(t, handler.served.Load())
	assert.Equal(t, 1, cleaned)
	assertFree(t, appAddr)
	assertFree(t, metricsAddr)
}

func TestApp_CancelledBeforeStartIsClean(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	handler := &countingHandler{}
	proc := &fakeProcess{name: "digest"}
	cleaned := 0

	app := core.NewApp(discardLogger(), core.Options{})
	app.AddListener(core.ListenerSpec{Name: "application", Addr: addr, Handler: handler})
	app.AddProcess(proc)
	app.OnClose("pool", func() error { cleaned++; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := app.Run(ctx)

	assert.True(t, out.OK(), out.String())
	assert.Zero(t, proc.prepared.Load())
	assert.Zero(t, proc.runs.Load())
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, core.StateTerminated, app.State())
	assertFree(t, addr)
}

// cancellingProcess asks for shutdown from inside Prepare and then waits
// for it, the way an operator's SIGTERM lands during a slow startup.
type cancellingProcess struct {
	cancel context.CancelFunc
	runs   atomic.Int32
}

func (p *cancellingProcess) Name() string { return "slow-start" }

func (p *cancellingProcess) Prepare(ctx context.Context) error {
	p.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func (p *cancellingProcess) Run(context.Context) error {
	p.runs.Add(1)
	return nil
}

func TestApp_CancelledWhilePreparingIsClean(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc := &cancellingProcess{cancel: cancel}
	cleaned := 0

	app := core.NewApp(discardLogger(), core.Options{PrepareTimeout: time.Second})
	app.AddListener(core.ListenerSpec{Name: "application", Addr: addr, Handler: &countingHandler{}})
	app.AddProcess(proc)
	app.OnClose("pool", func() error { cleaned++; return nil })

	out := app.Run(ctx)

	assert.True(t, out.OK(), out.String())
	assert.Equal(t, 0, out.ExitCode())
	assert.Zero(t, proc.runs.Load())
	assert.Equal(t, 1, cleaned)
	assertFree(t, addr)
}

func TestApp_PreparationTimeout(t *testing.T) {
	t.Parallel()

	slow := &fakeProcess{name: "slow", prepareDelay: time.Minute}
	app := core.NewApp(discardLogger(), core.Options{PrepareTimeout: 20 * time.Millisecond})
	app.AddProcess(slow)

	out := app.Run(context.Background())

	assert.Equal(t, core.OutcomePreparationFailure, out.Kind)
	assert.ErrorIs(t, out.Err, core.ErrPrepareTimeout)
	assert.Zero(t, slow.runs.Load())
}

func TestApp_GracefulShutdown(t *testing.T) {
	t.Parallel()

	events := &eventLog{}
	appLn, metricsLn := openListener(t), openListener(t)
	appAddr, metricsAddr := appLn.Addr().String(), metricsLn.Addr().String()

	workers := []*fakeProcess{
		{name: "digest", interval: 5 * time.Millisecond, log: events},
		{name: "reload", interval: 5 * time.Millisecond, log: events},
	}

	app := core.NewApp(discardLogger(), core.Options{})
	app.AddListener(core.ListenerSpec{Name: "application", Listener: appLn, Handler: &countingHandler{}})
	app.AddListener(core.ListenerSpec{Name: "metrics", Listener: metricsLn, Handler: &countingHandler{}})
	for _, w := range workers {
		app.AddProcess(w)
	}

	var listenersDown atomic.Bool
	for _, name := range []string{"A", "B", "C"} {
		app.OnClose(name, func() error {
			events.add("cleanup:" + name)
			_, errApp := net.Dial("tcp", appAddr)
			_, errMetrics := net.Dial("tcp", metricsAddr)
			listenersDown.Store(errApp != nil && errMetrics != nil)
			if name == "B" {
				return errors.New("B failed")
			}
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	outCh := runAsync(ctx, app)

	waitFor(t, func() bool { return app.State() == core.StateRunning }, "running state")
	for _, addr := range []string{appAddr, metricsAddr} {
		resp, err := http.Get("http://" + addr + "/liveness")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	waitFor(t, func() bool { return workers[0].ticks.Load() > 0 && workers[1].ticks.Load() > 0 }, "workers to tick")

	cancel()
	out := awaitOutcome(t, outCh)

	assert.True(t, out.OK(), out.String())
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, core.StateTerminated, app.State())
	assert.True(t, listenersDown.Load(), "cleanup ran while a listener was still accepting")

	got := events.list()
	require.Len(t, got, 5)
	cleanupA := events.index("cleanup:A")
	for _, w := range workers {
		assert.True(t, w.stopped.Load())
		assert.Less(t, events.index("stopped:"+w.name), cleanupA)
	}
	assert.Equal(t, []string{"cleanup:A", "cleanup:B", "cleanup:C"}, got[2:])
}

func TestApp_WorkerFailureNotFatal(t *testing.T) {
	t.Parallel()

	ln := openListener(t)
	failing := &fakeProcess{name: "failing", runErr: errBoom, failAfter: 5 * time.Millisecond}
	sibling := &fakeProcess{name: "sibling", interval: 5 * time.Millisecond}

	app := core.NewApp(discardLogger(), core.Options{FatalWorkerErrors: false})
	app.AddListener(core.ListenerSpec{Name: "application", Listener: ln, Handler: &countingHandler{}})
	app.AddProcess(failing)
	app.AddProcess(sibling)

	ctx, cancel := context.WithCancel(context.Background())
	outCh := runAsync(ctx, app)

	waitFor(t, failing.stopped.Load, "failing worker to stop")
	ticks := sibling.ticks.Load()
	waitFor(t, func() bool { return sibling.ticks.Load() > ticks+2 }, "sibling to keep running")

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, core.StateRunning, app.State())

	cancel()
	out := awaitOutcome(t, outCh)

	assert.Equal(t, core.OutcomeWorkerFailure, out.Kind)
	assert.ErrorIs(t, out.Err, errBoom)
	assert.True(t, sibling.stopped.Load())
}

func TestApp_WorkerFailureFatal(t *testing.T) {
	t.Parallel()

	failing := &fakeProcess{name: "failing", runErr: errBoom, failAfter: 5 * time.Millisecond}
	sibling := &fakeProcess{name: "sibling"}

	app := core.NewApp(discardLogger(), core.Options{FatalWorkerErrors: true})
	app.AddListener(core.ListenerSpec{Name: "application", Listener: openListener(t), Handler: &countingHandler{}})
	app.AddProcess(failing)
	app.AddProcess(sibling)

	out := awaitOutcome(t, runAsync(context.Background(), app))

	assert.Equal(t, core.OutcomeWorkerFailure, out.Kind)
	var werr *core.WorkerError
	require.ErrorAs(t, out.Err, &werr)
	assert.Equal(t, "failing", werr.Process)
	assert.True(t, sibling.stopped.Load())
}

// brokenListener fails Accept once tripped.
type brokenListener struct {
	net.Listener
	trip chan struct{}
}

func (l *brokenListener) Accept() (net.Conn, error) {
	<-l.trip
	return nil, errors.New("accept: too many open files")
}

func TestApp_ListenerFailureTakesPrecedence(t *testing.T) {
	t.Parallel()

	inner := openListener(t)
	broken := &brokenListener{Listener: inner, trip: make(chan struct{})}
	failing := &fakeProcess{name: "failing", runErr: errBoom, failAfter: time.Millisecond}
	sibling := &fakeProcess{name: "sibling"}

	app := core.NewApp(discardLogger(), core.Options{})
	app.AddListener(core.ListenerSpec{Name: "application", Listener: broken, Handler: &countingHandler{}})
	app.AddListener(core.ListenerSpec{Name: "metrics", Listener: openListener(t), Handler: &countingHandler{}})
	app.AddProcess(failing)
	app.AddProcess(sibling)

	outCh := runAsync(context.Background(), app)
	waitFor(t, failing.stopped.Load, "worker failure")
	close(broken.trip)

	out := awaitOutcome(t, outCh)

	assert.Equal(t, core.OutcomeListenerFailure, out.Kind)
	var serveErr *core.ServeError
	require.ErrorAs(t, out.Err, &serveErr)
	assert.Equal(t, "application", serveErr.Listener)
	assert.True(t, sibling.stopped.Load())
}

func TestApp_RunOnlyOnce(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := core.NewApp(discardLogger(), core.Options{})
	first := app.Run(ctx)
	require.True(t, first.OK(), first.String())

	second := app.Run(ctx)
	assert.Equal(t, core.OutcomePreparationFailure, second.Kind)
	assert.ErrorIs(t, second.Err, core.ErrAlreadyRun)
}

type stubModule struct {
	name      string
	deps      []string
	configure func(c core.Container, r core.Registrar) error
	log       *eventLog
}

func (m *stubModule) Name() string        { return m.name }
func (m *stubModule) DependsOn() []string { return m.deps }

func (m *stubModule) Configure(c core.Container, r core.Registrar) error {
	if m.log != nil {
		m.log.add(m.name)
	}
	if m.configure == nil {
		return nil
	}
	return m.configure(c, r)
}

func TestApp_ModulesConfigureInDependencyOrder(t *testing.T) {
	t.Parallel()

	events := &eventLog{}
	proc := &fakeProcess{name: "digest"}
	ln := openListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	app := core.NewApp(discardLogger(), core.Options{},
		&stubModule{name: "actuator", deps: []string{"web"}, log: events},
		&stubModule{name: "web", log: events, configure: func(c core.Container, r core.Registrar) error {
			core.Put[string](c, "engine")
			r.AddListener(core.ListenerSpec{Name: "application", Listener: ln, Handler: &countingHandler{}})
			return nil
		}},
		&stubModule{name: "jobs", deps: []string{"web"}, log: events, configure: func(c core.Container, r core.Registrar) error {
			if core.Get[string](c) != "engine" {
				return errors.New("engine missing")
			}
			r.AddProcess(proc)
			r.OnClose("jobs", func() error { return nil })
			return nil
		}},
	)

	outCh := runAsync(ctx, app)
	waitFor(t, func() bool { return proc.runs.Load() == 1 }, "process to run")
	cancel()
	out := awaitOutcome(t, outCh)

	require.True(t, out.OK(), out.String())
	assert.Equal(t, []string{"web", "actuator", "jobs"}, events.list())
}

func TestApp_ConfigureFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mods []core.Module
		want string
	}{
		{
			name: "missing dependency",
			mods: []core.Module{&stubModule{name: "actuator", deps: []string{"web"}}},
			want: "missing dependency",
		},
		{
			name: "cycle",
			mods: []core.Module{
				&stubModule{name: "a", deps: []string{"b"}},
				&stubModule{name: "b", deps: []string{"a"}},
			},
			want: "cycle detected",
		},
		{
			name: "duplicate",
			mods: []core.Module{&stubModule{name: "web"}, &stubModule{name: "web"}},
			want: "duplicate module name",
		},
		{
			name: "configure error",
			mods: []core.Module{&stubModule{name: "web", configure: func(core.Container, core.Registrar) error {
				return errBoom
			}}},
			want: "configure module web",
		},
		{
			name: "missing container entry",
			mods: []core.Module{&stubModule{name: "web", configure: func(c core.Container, _ core.Registrar) error {
				_ = core.Get[int](c)
				return nil
			}}},
			want: "missing dependency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cleaned := false
			app := core.NewApp(discardLogger(), core.Options{}, tt.mods...)
			app.OnClose("telemetry", func() error { cleaned = true; return nil })

			out := app.Run(context.Background())

			assert.Equal(t, core.OutcomePreparationFailure, out.Kind)
			assert.Contains(t, out.Cause, tt.want)
			assert.True(t, cleaned)
		})
	}
}
