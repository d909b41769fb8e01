package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// App composes listeners and background processes and runs them under a
// single lifecycle:
//
//	Idle -> Preparing -> Running -> ShuttingDown -> Drained -> Terminated
//
// Any listener failure, an OS signal or parent context cancellation (and,
// with Options.FatalWorkerErrors, a failing process) triggers one
// coordinated shutdown. Registered cleanups run once everything drained.
type App struct {
	Modules   []Module
	Container Container
	Logger    *slog.Logger

	opts      Options
	closer    *Closer
	mu        sync.Mutex
	listeners []ListenerSpec
	processes []Process
	state     atomic.Int32
	started   atomic.Bool
}

func NewApp(logger *slog.Logger, opts Options, mods ...Module) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Modules:   mods,
		Container: NewContainer(),
		Logger:    logger,
		opts:      opts,
		closer:    NewCloser(logger),
	}
}

// AddListener registers a listener. It must be called before Run.
func (a *App) AddListener(spec ListenerSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, spec)
}

// AddProcess registers a background process. It must be called before Run.
func (a *App) AddProcess(p Process) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processes = append(a.processes, p)
}

// OnClose registers a cleanup that runs once the App has drained.
func (a *App) OnClose(name string, fn CloseFunc) { a.closer.Register(name, fn) }

// Closer exposes the cleanup registry for resources acquired outside of
// modules.
func (a *App) Closer() *Closer { return a.closer }

// State returns the current lifecycle state.
func (a *App) State() State { return State(a.state.Load()) }

func (a *App) setState(s State) {
	a.state.Store(int32(s))
	a.Logger.Debug("lifecycle state", "state", s.String())
}

// Run drives the whole lifecycle and returns once the App is terminated.
// It can only be called once.
func (a *App) Run(ctx context.Context) Outcome {
	if !a.started.CompareAndSwap(false, true) {
		return failure(OutcomePreparationFailure, ErrAlreadyRun)
	}

	a.setState(StatePreparing)

	// 1) Order modules by dependencies and configure them
	if err := a.configure(); err != nil {
		return a.finish(failure(OutcomePreparationFailure, err))
	}

	a.mu.Lock()
	specs := append([]ListenerSpec(nil), a.listeners...)
	procs := append([]Process(nil), a.processes...)
	a.mu.Unlock()

	// A shutdown requested before anything serves is not a failure.
	if ctx.Err() != nil {
		for _, spec := range specs {
			if spec.Listener != nil {
				_ = spec.Listener.Close()
			}
		}
		return a.abandon(ctx, nil)
	}

	// 2) Reserve every address before anything serves
	bound, err := a.bindAll(ctx, specs)
	if err != nil {
		if ctx.Err() != nil {
			return a.abandon(ctx, nil)
		}
		return a.finish(failure(OutcomeListenerFailure, err))
	}

	// 3) Prepare all processes; nothing runs unless all of them succeed
	sup := NewSupervisor(a.Logger)
	if err := sup.PrepareAll(ctx, procs, a.opts.PrepareTimeout); err != nil {
		if ctx.Err() != nil {
			return a.abandon(ctx, bound)
		}
		closeBound(bound, a.Logger)
		return a.finish(failure(OutcomePreparationFailure, err))
	}

	// 4) Serve and run until the first terminal condition
	shutdown := NewShutdown(ctx, a.Logger, a.opts.Signals...)
	stop := shutdown.Listen()
	defer stop()

	var (
		errMu       sync.Mutex
		listenerErr error
	)
	sup.OnFailure = func(err *WorkerError) {
		if a.opts.FatalWorkerErrors {
			shutdown.CancelNow(err)
		}
	}

	a.setState(StateRunning)

	var wg sync.WaitGroup
	for _, b := range bound {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Serve(shutdown.Context(), a.Logger); err != nil {
				a.Logger.Error("listener failed", "listener", b.Name(), "error", err)
				errMu.Lock()
				if listenerErr == nil {
					listenerErr = err
				}
				errMu.Unlock()
				shutdown.CancelNow(err)
			}
		}()
	}
	handle := sup.RunAll(shutdown.Context(), procs)

	<-shutdown.Done()
	a.setState(StateShuttingDown)
	a.Logger.Info("shutting down", "cause", shutdown.Cause())

	// 5) Drain listeners and processes
	wg.Wait()
	workerErr := handle.Wait()
	a.setState(StateDrained)

	switch {
	case listenerErr != nil:
		return a.finish(failure(OutcomeListenerFailure, listenerErr))
	case workerErr != nil:
		return a.finish(failure(OutcomeWorkerFailure, workerErr))
	default:
		return a.finish(success())
	}
}

// abandon ends a run whose parent context was cancelled while preparing:
// bound sockets are released, no process is started and the outcome is
// a clean shutdown.
func (a *App) abandon(ctx context.Context, bound []*BoundListener) Outcome {
	a.setState(StateShuttingDown)
	a.Logger.Info("shutdown requested while preparing", "cause", context.Cause(ctx))
	closeBound(bound, a.Logger)
	a.setState(StateDrained)
	return a.finish(success())
}

// finish releases every registered resource and terminates the App.
func (a *App) finish(out Outcome) Outcome {
	a.closer.CloseAll()
	a.setState(StateTerminated)
	if out.OK() {
		a.Logger.Info("app terminated")
	} else {
		a.Logger.Error("app terminated", "outcome", out.Kind.String(), "cause", out.Cause)
	}
	return out
}

func (a *App) configure() error {
	order, err := topoSort(a.Modules)
	if err != nil {
		return err
	}
	for _, m := range order {
		a.Logger.Info("configuring module", "module", m.Name())
		err := callSafely(func() error { return m.Configure(a.Container, a) })
		if err != nil {
			return fmt.Errorf("configure module %s: %w", m.Name(), err)
		}
	}
	return nil
}

// bindAll binds every listener concurrently. If any fails, the ones that
// succeeded are closed again so none is left orphaned.
func (a *App) bindAll(ctx context.Context, specs []ListenerSpec) ([]*BoundListener, error) {
	bound := make([]*BoundListener, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			b, err := Bind(ctx, spec)
			bound[i] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		a.Logger.Error("listener bind failed", "error", err)
		closeBound(bound, a.Logger)
		return nil, err
	}
	for _, b := range bound {
		a.Logger.Info("listener bound", "listener", b.Name(), "addr", b.Addr().String())
	}
	return bound, nil
}

func closeBound(bound []*BoundListener, logger *slog.Logger) {
	for _, b := range bound {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil {
			logger.Warn("close listener", "listener", b.Name(), "error", err)
		}
	}
}

func topoSort(mods []Module) ([]Module, error) {
	nameToMod := map[string]Module{}
	for _, m := range mods {
		if _, dup := nameToMod[m.Name()]; dup {
			return nil, errors.New("duplicate module name: " + m.Name())
		}
		nameToMod[m.Name()] = m
	}
	visited := map[string]bool{}
	temp := map[string]bool{}
	var out []Module
	var visit func(string) error

	visit = func(n string) error {
		if temp[n] {
			return errors.New("cycle detected at module " + n)
		}
		if visited[n] {
			return nil
		}
		temp[n] = true
		m := nameToMod[n]
		for _, d := range m.DependsOn() {
			if _, ok := nameToMod[d]; !ok {
				return errors.New("missing dependency: " + n + " depends on " + d)
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		visited[n] = true
		temp[n] = false
		out = append(out, m)
		return nil
	}

	// Make iteration order stable.
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.Name())
	}
	sort.Strings(names)

	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
