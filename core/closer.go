package core

import (
	"log/slog"
	"sync"
)

// CloseFunc releases a resource acquired during startup.
type CloseFunc func() error

type closerEntry struct {
	name string
	fn   CloseFunc
}

// Closer is an ordered registry of cleanup callbacks drained once at
// shutdown. Callbacks run in registration order; a failing or panicking
// callback is logged and the remaining ones still run.
type Closer struct {
	mu      sync.Mutex
	entries []closerEntry
	closed  bool
	// draining is set while CloseAll runs callbacks. The lock is not held
	// then, so a callback may itself Register.
	draining bool
	logger   *slog.Logger
}

func NewCloser(logger *slog.Logger) *Closer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Closer{logger: logger}
}

// Register appends a cleanup callback. A callback registered while
// CloseAll is draining runs after the ones already queued; once CloseAll
// has finished it is invoked immediately so the resource is not leaked.
func (c *Closer) Register(name string, fn CloseFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if c.closed && !c.draining {
		c.mu.Unlock()
		c.logger.Warn("closer already drained, releasing resource now", "resource", name)
		c.run(closerEntry{name: name, fn: fn})
		return
	}
	c.entries = append(c.entries, closerEntry{name: name, fn: fn})
	c.mu.Unlock()
}

// Len returns the number of callbacks waiting to run.
func (c *Closer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CloseAll runs every registered callback exactly once. Later calls are
// no-ops and return without waiting for the drain. Errors are logged,
// never returned.
func (c *Closer) CloseAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.draining = true

	for {
		entries := c.entries
		c.entries = nil
		if len(entries) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		for _, e := range entries {
			c.run(e)
		}
		c.mu.Lock()
	}
}

func (c *Closer) run(e closerEntry) {
	if err := callSafely(e.fn); err != nil {
		c.logger.Error("cleanup failed", "resource", e.name, "error", err)
		return
	}
	c.logger.Info("resource released", "resource", e.name)
}

// callSafely invokes fn and converts a panic into a PanicError.
func callSafely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return fn()
}
