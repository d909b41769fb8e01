package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Manager loads configuration from its sources, validates it and keeps the
// caller's struct up to date.
//
// Sources are merged in order, later ones overriding earlier ones, on top of
// Options.Defaults. An update is applied only after it bound and validated,
// so the struct never holds a partial or invalid configuration. All methods
// are safe for concurrent use; readers should go through View.
type Manager struct {
	sources  []ConfigSource
	defaults map[string]any
	config   any
	binder   *Binder
	mu       sync.RWMutex
	subs     []chan Event
}

type Options struct {
	// Defaults is merged below every source.
	Defaults map[string]any
}

// NewManager binds the initial configuration into cfg, a pointer to a
// struct:
//
//	var cfg config.Root
//	mgr, err := config.NewManager(&cfg, config.Options{Defaults: config.Defaults()},
//	    &source.FileSource{BasePath: "configs", Profile: "dev"},
//	    &source.EnvSource{},
//	    &source.CLISource{},
//	)
func NewManager(cfg any, opts Options, sources ...ConfigSource) (*Manager, error) {
	m := &Manager{
		sources:  sources,
		defaults: opts.Defaults,
		config:   cfg,
		binder:   NewBinder(),
	}
	if err := m.Reload(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads every source and atomically replaces the configuration.
// On any error the current configuration is left untouched. Subscribers are
// notified only when something changed.
func (m *Manager) Reload(ctx context.Context) error {
	merged := clone(m.defaults)
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		vals, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", src.Name(), err)
		}
		Merge(merged, vals)
	}

	newCfg := reflect.New(reflect.TypeOf(m.config).Elem()).Interface()
	if err := m.binder.Bind(merged, newCfg); err != nil {
		return fmt.Errorf("failed to bind config: %w", err)
	}

	m.mu.Lock()
	oldCfg := reflect.New(reflect.TypeOf(m.config).Elem()).Interface()
	reflect.ValueOf(oldCfg).Elem().Set(reflect.ValueOf(m.config).Elem())
	reflect.ValueOf(m.config).Elem().Set(reflect.ValueOf(newCfg).Elem())
	m.mu.Unlock()

	if !reflect.DeepEqual(oldCfg, newCfg) {
		m.notify(diffEvent(oldCfg, newCfg))
	}
	return nil
}

// View runs fn while holding the read lock, so fn sees a consistent
// configuration even while a reload is in progress.
func (m *Manager) View(fn func(cfg any)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.config)
}

// Subscribe registers ch for change events. Delivery never blocks: when ch
// is full the event is dropped, so ch should be buffered. The Manager never
// closes ch.
func (m *Manager) Subscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, ch)
}

func (m *Manager) notify(evt Event) {
	m.mu.RLock()
	subs := append([]chan Event(nil), m.subs...)
	m.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Watch reloads the configuration whenever a source reports a change, until
// ctx is done. Reload failures are passed to onError (which may be nil) and
// keep the previous configuration. Watch returns nil on cancellation and the
// first source watch error otherwise.
func (m *Manager) Watch(ctx context.Context, onError func(error)) error {
	ctx, cancel := context.WithCancel(ctx)

	changed := make(chan Event, 1)
	failed := make(chan error, len(m.sources))
	var wg sync.WaitGroup
	for _, src := range m.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Watch(ctx, changed); err != nil && ctx.Err() == nil {
				failed <- fmt.Errorf("watch %s: %w", src.Name(), err)
			}
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			return err
		case <-changed:
			if err := m.Reload(ctx); err != nil && onError != nil && ctx.Err() == nil {
				onError(err)
			}
		}
	}
}
