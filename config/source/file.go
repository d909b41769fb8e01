package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/skekre98/chatlog/config"
)

const defaultDebounce = 200 * time.Millisecond

// FileSource loads application.yaml (or .yml) from BasePath and, when
// Profile is set, deep-merges application.<profile>.yaml on top of it:
//
//	configs/
//	  application.yaml
//	  application.dev.yaml
//	  application.prod.yaml
//
// A missing profile file is not an error.
type FileSource struct {
	BasePath string
	Profile  string

	// Debounce coalesces bursts of filesystem events (editors often write
	// a file in several steps). Defaults to 200ms.
	Debounce time.Duration
}

func (f *FileSource) Name() string { return "file" }

// Load returns os.ErrNotExist (wrapped) when the base file is missing.
func (f *FileSource) Load(ctx context.Context) (map[string]any, error) {
	baseFile := findYAMLFile(f.BasePath, "application")
	if baseFile == "" {
		return nil, fmt.Errorf("application.yaml in %q: %w", f.BasePath, os.ErrNotExist)
	}

	data := map[string]any{}
	if err := readYAML(baseFile, data); err != nil {
		return nil, err
	}

	if f.Profile != "" {
		if profileFile := findYAMLFile(f.BasePath, "application."+f.Profile); profileFile != "" {
			overlay := map[string]any{}
			if err := readYAML(profileFile, overlay); err != nil {
				return nil, err
			}
			config.Merge(data, overlay)
		}
	}
	return data, nil
}

// Watch follows BasePath with fsnotify and sends an Event once the base or
// profile file settled after a change. The directory is watched instead of
// the files so that atomic renames by editors are seen too.
func (f *FileSource) Watch(ctx context.Context, ch chan<- config.Event) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(f.BasePath); err != nil {
		return fmt.Errorf("watch %s: %w", f.BasePath, err)
	}

	debounce := f.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !f.tracks(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case <-fire:
			fire = nil
			select {
			case ch <- config.Event{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (f *FileSource) tracks(path string) bool {
	name := filepath.Base(path)
	for _, ext := range []string{".yaml", ".yml"} {
		if name == "application"+ext {
			return true
		}
		if f.Profile != "" && name == "application."+f.Profile+ext {
			return true
		}
	}
	return false
}

func findYAMLFile(dir, basename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, basename+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func readYAML(path string, out map[string]any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
