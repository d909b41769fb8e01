//go:build !unix

package core

import "os"

// DefaultSignals are the termination signals a Shutdown listens for.
func DefaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
