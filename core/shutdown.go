package core

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Shutdown coordinates a single, broadcast cancellation. Its Context is
// the cancellation signal handed to every listener and process; CancelNow
// is the only way to cancel it, and only the first call has an effect.
type Shutdown struct {
	ctx         context.Context
	cancel      context.CancelCauseFunc
	parent      context.Context
	signals     []os.Signal
	logger      *slog.Logger
	once        sync.Once
	transitions atomic.Int32
}

// NewShutdown creates a coordinator. Values of parent are visible through
// Context, but parent cancellation only takes effect once Listen runs.
// With no signals, DefaultSignals is used.
func NewShutdown(parent context.Context, logger *slog.Logger, signals ...os.Signal) *Shutdown {
	if logger == nil {
		logger = slog.Default()
	}
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	return &Shutdown{
		ctx:     ctx,
		cancel:  cancel,
		parent:  parent,
		signals: signals,
		logger:  logger,
	}
}

// Context returns the cancellation signal.
func (s *Shutdown) Context() context.Context { return s.ctx }

// Done is closed once shutdown has been triggered.
func (s *Shutdown) Done() <-chan struct{} { return s.ctx.Done() }

// Cancelled reports whether shutdown has been triggered.
func (s *Shutdown) Cancelled() bool { return s.ctx.Err() != nil }

// Cause returns what triggered the shutdown, or nil.
func (s *Shutdown) Cause() error { return context.Cause(s.ctx) }

// Transitions reports how many times the signal changed state; 0 or 1.
func (s *Shutdown) Transitions() int { return int(s.transitions.Load()) }

// CancelNow triggers shutdown with the given cause. It reports whether this
// call performed the transition; concurrent and repeated calls are no-ops.
func (s *Shutdown) CancelNow(cause error) bool {
	fired := false
	s.once.Do(func() {
		fired = true
		s.transitions.Add(1)
		if cause == nil {
			cause = context.Canceled
		}
		s.logger.Info("shutdown triggered", "cause", cause)
		s.cancel(cause)
	})
	return fired
}

// Listen subscribes to the configured OS signals and to parent
// cancellation. The first one observed triggers shutdown. The returned
// func unsubscribes; it is safe to call more than once.
func (s *Shutdown) Listen() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.signals...)

	quit := make(chan struct{})
	var stopOnce sync.Once
	stop = func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}

	go func() {
		select {
		case sig := <-ch:
			s.CancelNow(&SignalError{Signal: sig})
		case <-s.parent.Done():
			s.CancelNow(context.Cause(s.parent))
		case <-s.ctx.Done():
		case <-quit:
		}
	}()
	return stop
}
