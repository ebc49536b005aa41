// Package watcher maps filesystem change events onto scanner invocations.
// Changes are debounced per rule and flushed as one batch per target
// scanner set.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// DefaultDebounce is the inactivity window before a batch flushes.
const DefaultDebounce = 500 * time.Millisecond

// Enqueuer is the slice of the task queue the watcher needs.
type Enqueuer interface {
	Enqueue(scannerID string, source types.TaskSource, priority types.Priority, files []string, options map[string]any) *types.Task
}

// DefaultIgnoreDirs are directory names the watcher never descends into.
// The daemon state directory must always be ignored or the daemon's own
// writes would re-trigger scans forever.
var DefaultIgnoreDirs = []string{
	".git", ".dcyfr", "node_modules", "vendor", "dist", "build",
	"coverage", ".next", ".turbo", ".cache", ".DS_Store",
}

// Config holds watcher configuration.
type Config struct {
	WorkspaceRoot string
	Roots         []string // watch roots relative to the workspace; empty means the root itself
	IgnoreDirs    []string // defaults to DefaultIgnoreDirs; .dcyfr is ignored either way
	Debounce      time.Duration
	Rules         []Rule
}

// Watcher owns the OS notification stream and the open debounce batches.
type Watcher struct {
	cfg Config
	enq Enqueuer
	bus *events.Bus
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	batches map[string]*batch
	ignore  map[string]bool
	running bool

	// errLimiter keeps a misbehaving OS notifier from flooding the log
	errLimiter *rate.Limiter

	stopCh chan struct{}
	doneCh chan struct{}
}

// batch accumulates paths for one rule key until its debounce timer fires.
type batch struct {
	scanners []string
	files    map[string]struct{}
	debounce time.Duration
	timer    *time.Timer
}

// New creates a watcher. Callers must Start it.
func New(cfg Config, enq Enqueuer, bus *events.Bus) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.IgnoreDirs) == 0 {
		cfg.IgnoreDirs = DefaultIgnoreDirs
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}

	ignore := make(map[string]bool, len(cfg.IgnoreDirs)+1)
	for _, d := range cfg.IgnoreDirs {
		ignore[d] = true
	}
	ignore[".dcyfr"] = true

	return &Watcher{
		cfg:        cfg,
		enq:        enq,
		bus:        bus,
		fsw:        fsw,
		batches:    make(map[string]*batch),
		ignore:     ignore,
		errLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start registers the watch roots and launches the event loop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	roots := w.cfg.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, r := range roots {
		abs := filepath.Join(w.cfg.WorkspaceRoot, r)
		if err := w.addRecursive(abs); err != nil {
			return fmt.Errorf("watching %s: %w", abs, err)
		}
	}

	go w.loop()
	return nil
}

// Stop cancels all open debounce timers and closes the OS watcher.
// Accumulated but unflushed batches are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	for key, b := range w.batches {
		b.timer.Stop()
		delete(w.batches, key)
	}
	w.mu.Unlock()

	close(w.stopCh)
	_ = w.fsw.Close()
	<-w.doneCh
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(evt)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleEvent normalizes one OS event and routes it into rule batches.
func (w *Watcher) handleEvent(evt fsnotify.Event) {
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.isIgnored(evt.Name) {
		return
	}

	// New directories must be added to the (non-recursive) OS watcher
	if evt.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(evt.Name)
			return
		}
	}

	rel, err := filepath.Rel(w.cfg.WorkspaceRoot, evt.Name)
	if err != nil {
		rel = evt.Name
	}
	rel = filepath.ToSlash(rel)

	w.bus.Emit(events.EventWatcherChange, map[string]any{
		"path": rel,
		"op":   evt.Op.String(),
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	for i := range w.cfg.Rules {
		rule := &w.cfg.Rules[i]
		if !rule.Pattern.MatchString(rel) {
			continue
		}
		w.appendToBatchLocked(rule, rel)
	}
}

// appendToBatchLocked adds a path to the rule's open batch, (re)arming the
// debounce timer from the latest event.
func (w *Watcher) appendToBatchLocked(rule *Rule, rel string) {
	key := rule.batchKey()
	debounce := rule.Debounce
	if debounce == 0 {
		debounce = w.cfg.Debounce
	}

	b, open := w.batches[key]
	if !open {
		b = &batch{
			scanners: rule.Scanners,
			files:    make(map[string]struct{}),
			debounce: debounce,
		}
		b.timer = time.AfterFunc(debounce, func() { w.flush(key) })
		w.batches[key] = b
	} else {
		b.timer.Reset(debounce)
	}
	b.files[rel] = struct{}{}
}

// flush closes a batch and enqueues one task per target scanner with the
// accumulated file list.
func (w *Watcher) flush(key string) {
	w.mu.Lock()
	b, ok := w.batches[key]
	if !ok || !w.running {
		w.mu.Unlock()
		return
	}
	delete(w.batches, key)
	files := make([]string, 0, len(b.files))
	for f := range b.files {
		files = append(files, f)
	}
	scanners := b.scanners
	w.mu.Unlock()

	for _, id := range scanners {
		w.enq.Enqueue(id, types.SourceWatcher, types.PriorityHigh, files, nil)
	}
}

// handleError re-emits host errors and keeps running. Emission is rate
// limited so a broken notifier cannot flood the bus.
func (w *Watcher) handleError(err error) {
	if !w.errLimiter.Allow() {
		return
	}
	w.bus.Emit(events.EventWatcherError, map[string]any{
		"error": err.Error(),
	})
}

// addRecursive registers a directory tree with the OS watcher, skipping
// ignored directories.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			// Unwatchable subdirectories degrade coverage, not the daemon
			fmt.Fprintf(os.Stderr, "Warning: cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

// isIgnored checks whether any path segment names an ignored directory.
func (w *Watcher) isIgnored(path string) bool {
	rel, err := filepath.Rel(w.cfg.WorkspaceRoot, path)
	if err != nil {
		rel = path
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[seg] {
			return true
		}
	}
	return false
}
