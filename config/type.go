package config

import "context"

// ConfigSource is one layer of configuration: a YAML file, the
// environment, command-line flags.
type ConfigSource interface {
	// Load returns the source's data as a string-keyed, possibly nested,
	// map. The returned map belongs to the caller.
	Load(ctx context.Context) (map[string]any, error)

	// Watch blocks until ctx is done, sending an Event on ch whenever the
	// source changed. Sources that cannot change return nil immediately.
	// Watch never closes ch.
	Watch(ctx context.Context, ch chan<- Event) error

	// Name identifies the source in errors and logs ("file", "env", "cli").
	Name() string
}

// Event describes a configuration change. Sources send an empty Event to
// signal that they changed; the Manager sends subscribers the full diff.
type Event struct {
	// ChangedKeys are dotted Go field paths, e.g. "Server.Port".
	ChangedKeys []string
	OldConfig   any
	NewConfig   any
}
