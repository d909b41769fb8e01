package core_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skekre98/chatlog/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventLog records lifecycle events from concurrent goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(e string) int {
	for i, got := range l.list() {
		if got == e {
			return i
		}
	}
	return -1
}

// fakeProcess is a configurable core.Process.
type fakeProcess struct {
	name       string
	prepareErr error
	// prepareDelay blocks Prepare (respecting ctx) before returning.
	prepareDelay time.Duration
	// runErr is returned by Run after failAfter; zero failAfter means Run
	// waits for cancellation.
	runErr    error
	failAfter time.Duration
	interval  time.Duration
	log       *eventLog

	prepared atomic.Int32
	runs     atomic.Int32
	ticks    atomic.Int32
	stopped  atomic.Bool
}

func (p *fakeProcess) Name() string { return p.name }

func (p *fakeProcess) Prepare(ctx context.Context) error {
	p.prepared.Add(1)
	if p.prepareDelay > 0 {
		select {
		case <-time.After(p.prepareDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.prepareErr
}

func (p *fakeProcess) Run(ctx context.Context) error {
	p.runs.Add(1)
	defer func() {
		p.stopped.Store(true)
		if p.log != nil {
			p.log.add("stopped:" + p.name)
		}
	}()

	if p.failAfter > 0 {
		select {
		case <-time.After(p.failAfter):
			return p.runErr
		case <-ctx.Done():
			return nil
		}
	}

	interval := p.interval
	if interval == 0 {
		interval = 10 * time.Millisecond
	}
	return core.Tick(ctx, interval, func(context.Context) error {
		p.ticks.Add(1)
		return nil
	})
}

// freeAddr returns an address that is currently unused.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// occupiedAddr returns an address held open until the test ends.
func occupiedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

var errBoom = errors.New("boom")
