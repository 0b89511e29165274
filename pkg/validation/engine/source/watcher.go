package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// WatcherConfig configures a FileWatcher.
type WatcherConfig struct {
	// Path is the rule document or directory to watch.
	Path string

	// DebounceInterval is the quiet period after the last change before an
	// event is sent (default: 100ms).
	DebounceInterval time.Duration
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
	}
}

// FileWatcher turns file system changes to rule documents into debounced
// rule events.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	config   *WatcherConfig
	debounce *Debouncer
	logger   *slog.Logger

	// file is set when a single document is watched through its directory.
	file string

	mu      sync.Mutex
	running bool
}

// NewFileWatcher creates a watcher for config.Path.
func NewFileWatcher(config *WatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultWatcherConfig().DebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  w,
		config:   config,
		debounce: NewDebouncer(config.DebounceInterval),
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled, sending events on out. It closes the
// fsnotify watcher before returning but never closes out.
func (fw *FileWatcher) Run(ctx context.Context, out chan<- engine.RuleEvent) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.debounce.Stop()
		fw.watcher.Close()
	}()

	if err := fw.addPath(fw.config.Path); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	fw.logger.Info("rule watcher started",
		"path", fw.config.Path,
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	send := func(event engine.RuleEvent) {
		select {
		case out <- event:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.relevant(event) {
				continue
			}

			fw.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())

			ruleEvent := engine.RuleEvent{Type: eventType(event.Op), Path: event.Name}
			fw.debounce.Trigger(func() { send(ruleEvent) })

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("rule watcher error", "error", err)
			send(engine.RuleEvent{Path: fw.config.Path, Error: err})
		}
	}
}

// addPath watches a directory tree, or the directory holding a single document.
// Editors often replace files by rename, which drops a watch on the file itself.
func (fw *FileWatcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		fw.file = filepath.Clean(path)
		return fw.watcher.Add(filepath.Dir(path))
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", p, err)
		}
		return nil
	})
}

// relevant filters out chmod events and files that are not rule documents.
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if fw.file != "" {
		return filepath.Clean(event.Name) == fw.file
	}
	return ruleset.IsRuleFile(event.Name)
}

func eventType(op fsnotify.Op) engine.RuleEventType {
	switch {
	case op.Has(fsnotify.Create):
		return engine.RuleEventCreated
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return engine.RuleEventDeleted
	default:
		return engine.RuleEventModified
	}
}

// Debouncer collapses rapid triggers into one callback after a quiet period.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
	inflight sync.WaitGroup
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any callback still waiting.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		if d.stopped || cb == nil {
			d.mu.Unlock()
			return
		}
		d.inflight.Add(1)
		d.mu.Unlock()

		defer d.inflight.Done()
		cb()
	})
}

// Stop cancels any pending callback and waits for a running one to return.
// Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.callback = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.inflight.Wait()
}
