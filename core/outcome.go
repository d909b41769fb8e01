package core

import (
	"errors"
	"fmt"
	"os"
)

// OutcomeKind classifies how a Run ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeListenerFailure
	OutcomeWorkerFailure
	OutcomePreparationFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeListenerFailure:
		return "listener_failure"
	case OutcomeWorkerFailure:
		return "worker_failure"
	case OutcomePreparationFailure:
		return "preparation_failure"
	default:
		return "unknown"
	}
}

// Outcome is the single result of App.Run. Cause is a human-readable
// description of the failure, Err the underlying error.
type Outcome struct {
	Kind  OutcomeKind
	Cause string
	Err   error
}

func success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func failure(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, Cause: err.Error(), Err: err}
}

// OK reports whether the run completed without failure.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// ExitCode maps the outcome to a process exit status.
func (o Outcome) ExitCode() int {
	if o.OK() {
		return 0
	}
	return 1
}

func (o Outcome) String() string {
	if o.OK() {
		return o.Kind.String()
	}
	return o.Kind.String() + ": " + o.Cause
}

var (
	// ErrPrepareTimeout is wrapped by a PreparationError when a process
	// did not finish Prepare within the configured timeout.
	ErrPrepareTimeout = errors.New("prepare timed out")

	// ErrAlreadyRun is returned when Run is called on an App more than once.
	ErrAlreadyRun = errors.New("app already run")
)

// BindError reports a listener address that could not be reserved.
type BindError struct {
	Listener string
	Addr     string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s listener on %s: %v", e.Listener, e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ServeError reports a listener that failed while serving.
type ServeError struct {
	Listener string
	Err      error
}

func (e *ServeError) Error() string {
	return fmt.Sprintf("serve %s listener: %v", e.Listener, e.Err)
}

func (e *ServeError) Unwrap() error { return e.Err }

// PreparationError reports a process whose Prepare failed or timed out.
type PreparationError struct {
	Process string
	Err     error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("prepare process %s: %v", e.Process, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

// WorkerError reports a process whose Run loop failed.
type WorkerError struct {
	Process string
	Err     error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("process %s: %v", e.Process, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// SignalError is the shutdown cause recorded when an OS signal arrives.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "received signal " + e.Signal.String()
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
