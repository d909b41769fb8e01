package core

import (
	"os"
	"time"
)

// Module is a unit of capability that participates in the app lifecycle.
type Module interface {
	Name() string
	// DependsOn declares hard dependencies by module name.
	DependsOn() []string
	// Configure registers objects into the container and contributes
	// listeners, processes and cleanups through r.
	Configure(c Container, r Registrar) error
}

// Registrar is what a Module sees of the App while configuring.
type Registrar interface {
	AddListener(spec ListenerSpec)
	AddProcess(p Process)
	OnClose(name string, fn CloseFunc)
}

// Options tunes the App lifecycle.
type Options struct {
	// PrepareTimeout bounds each process's Prepare. Zero means
	// DefaultPrepareTimeout.
	PrepareTimeout time.Duration
	// Signals that trigger shutdown. Empty means DefaultSignals.
	Signals []os.Signal
	// FatalWorkerErrors makes any failing run loop shut the service down.
	// Otherwise the failure is logged and reported in the Outcome.
	FatalWorkerErrors bool
}
