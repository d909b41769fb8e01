package core

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Container is the registry modules share objects through while they are
// configured: config, logger, engines, repositories. Entries are keyed by
// their static Go type, so an interface and its implementation are
// distinct entries:
//
//	core.Put[messages.Repository](c, repo)
//	repo := core.Get[messages.Repository](c)
//
// Only this package implements Container.
type Container interface {
	// Types lists the registered entry types.
	Types() []string

	store(t reflect.Type, v any)
	load(t reflect.Type) (any, bool)
}

type typeRegistry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]any
}

func NewContainer() Container {
	return &typeRegistry{entries: make(map[reflect.Type]any)}
}

func (r *typeRegistry) store(t reflect.Type, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t] = v
}

func (r *typeRegistry) load(t reflect.Type) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[t]
	return v, ok
}

func (r *typeRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}

// MissingDependencyError is the panic value of Get when nothing was Put
// for the requested type.
type MissingDependencyError struct {
	Type reflect.Type
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("container: missing dependency %s", e.Type)
}

// Put stores v under T, replacing any earlier entry.
func Put[T any](c Container, v T) { c.store(reflect.TypeFor[T](), v) }

// Get returns the entry stored for T. A missing entry is a wiring bug in
// module composition, so Get panics with a *MissingDependencyError; App
// turns that into a preparation failure.
func Get[T any](c Container) T {
	v, ok := Lookup[T](c)
	if !ok {
		panic(&MissingDependencyError{Type: reflect.TypeFor[T]()})
	}
	return v
}

// Lookup is Get for optional entries.
func Lookup[T any](c Container) (T, bool) {
	raw, ok := c.load(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	// raw is nil when a nil interface value was stored.
	v, _ := raw.(T)
	return v, true
}
