package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPrepareTimeout bounds Prepare when no timeout is configured.
const DefaultPrepareTimeout = 60 * time.Second

// Process is a supervised unit of long-running background work.
type Process interface {
	// Name identifies the process in logs and errors.
	Name() string
	// Prepare performs one-time setup. It must honour ctx, which carries
	// the preparation deadline.
	Prepare(ctx context.Context) error
	// Run loops until ctx is cancelled. Returning nil (or ctx.Err()) after
	// cancellation is a clean stop; anything else is a failure.
	Run(ctx context.Context) error
}

// Supervisor drives the two-phase lifecycle of a set of processes.
type Supervisor struct {
	Logger *slog.Logger
	// OnFailure is called from the failing goroutine each time a run loop
	// fails. It may be nil.
	OnFailure func(err *WorkerError)
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{Logger: logger}
}

// PrepareAll runs Prepare for every process concurrently, each bounded by
// timeout. It returns the first *PreparationError; when it does, no
// process may be started.
func (s *Supervisor) PrepareAll(ctx context.Context, procs []Process, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPrepareTimeout
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		g.Go(func() error {
			return s.prepare(gctx, p, timeout)
		})
	}
	return g.Wait()
}

func (s *Supervisor) prepare(ctx context.Context, p Process, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- callSafely(func() error { return p.Prepare(pctx) })
	}()

	var err error
	select {
	case err = <-done:
	case <-pctx.Done():
		err = pctx.Err()
	}

	switch {
	case err == nil:
		s.Logger.Info("process prepared", "process", p.Name())
		return nil
	case errors.Is(pctx.Err(), context.DeadlineExceeded):
		err = errors.Join(ErrPrepareTimeout, err)
	}
	s.Logger.Error("process preparation failed", "process", p.Name(), "error", err)
	return &PreparationError{Process: p.Name(), Err: err}
}

// RunHandle joins the run loops started by RunAll.
type RunHandle struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []*WorkerError
}

// Wait blocks until every run loop has returned and reports the first
// failure, if any. All loops are always drained.
func (h *RunHandle) Wait() error {
	h.wg.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errs) == 0 {
		return nil
	}
	return h.errs[0]
}

// Errors returns every recorded failure in the order they occurred.
func (h *RunHandle) Errors() []*WorkerError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*WorkerError(nil), h.errs...)
}

func (h *RunHandle) record(err *WorkerError) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

// RunAll starts every process's Run loop concurrently with ctx as the
// shared cancellation signal. A failing loop does not stop its siblings.
func (s *Supervisor) RunAll(ctx context.Context, procs []Process) *RunHandle {
	h := &RunHandle{}
	for _, p := range procs {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			s.run(ctx, p, h)
		}()
	}
	return h
}

func (s *Supervisor) run(ctx context.Context, p Process, h *RunHandle) {
	s.Logger.Info("process started", "process", p.Name())
	err := callSafely(func() error { return p.Run(ctx) })
	if err == nil || (ctx.Err() != nil && errors.Is(err, context.Canceled)) {
		s.Logger.Info("process stopped", "process", p.Name())
		return
	}

	werr := &WorkerError{Process: p.Name(), Err: err}
	h.record(werr)
	s.Logger.Error("process failed", "process", p.Name(), "error", err)
	if s.OnFailure != nil {
		s.OnFailure(werr)
	}
}
