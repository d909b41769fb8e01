//go:build unix

package core

import (
	"os"
	"syscall"
)

// DefaultSignals are the termination signals a Shutdown listens for.
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}
