// Package daemon is the process supervisor: it wires the event bus,
// registry, queue, scheduler, and watcher together, enforces the
// single-instance invariant, handles signals, heartbeats, and drives the
// health snapshot on shutdown.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/ai"
	"github.com/dcyfr/dcyfr-ai-cli/internal/config"
	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/health"
	"github.com/dcyfr/dcyfr-ai-cli/internal/logging"
	"github.com/dcyfr/dcyfr-ai-cli/internal/queue"
	"github.com/dcyfr/dcyfr-ai-cli/internal/scanner"
	"github.com/dcyfr/dcyfr-ai-cli/internal/schedule"
	"github.com/dcyfr/dcyfr-ai-cli/internal/storage"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
	"github.com/dcyfr/dcyfr-ai-cli/internal/watcher"
)

// Daemon supervises the workspace-guardian subsystems. It owns the queue,
// scheduler, and watcher; the two trigger sources receive borrowed handles
// to the queue and bus at construction.
type Daemon struct {
	cfg      *config.Config
	settings *scanner.Settings
	logger   *logging.Logger

	bus       *events.Bus
	registry  *scanner.Registry
	queue     *queue.Queue
	scheduler *schedule.Scheduler
	watcher   *watcher.Watcher
	archive   *storage.Archive

	mu          sync.Mutex
	running     bool
	startedAt   time.Time
	resultCache map[string]*types.ScanResult

	unsubscribe []func()
	stopOnce    sync.Once

	heartbeatStopCh chan struct{}
	heartbeatDoneCh chan struct{}
	signalCh        chan os.Signal
}

// New builds an unstarted daemon from resolved configuration.
func New(cfg *config.Config) (*Daemon, error) {
	settings, err := scanner.LoadSettings(cfg.StatePath("scanners.yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading scanner settings: %w", err)
	}

	return &Daemon{
		cfg:             cfg,
		settings:        settings,
		resultCache:     make(map[string]*types.ScanResult),
		heartbeatStopCh: make(chan struct{}),
		heartbeatDoneCh: make(chan struct{}),
	}, nil
}

// Start acquires the single-instance lock, wires every subsystem in
// dependency order, restores the queue, and begins heartbeating.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.mu.Unlock()

	// State directory must exist before the PID file can be written.
	// Failure here is fatal.
	if err := os.MkdirAll(d.cfg.StateDir(), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := acquirePIDFile(d.cfg.StatePath("daemon.pid")); err != nil {
		return err
	}

	d.logger = logging.New(logging.Config{
		Path:         d.cfg.StatePath("daemon.log"),
		MaxSizeBytes: d.cfg.LogMaxSizeBytes,
		MaxBackups:   d.cfg.LogMaxBackups,
	})

	// Wire components leaves-first; each takes the ones before it
	d.bus = events.NewBus()
	d.registry = scanner.NewRegistry()
	if err := scanner.RegisterBuiltins(d.registry, ai.NewFromEnv()); err != nil {
		releasePIDFile(d.cfg.StatePath("daemon.pid"))
		return err
	}

	qcfg := queue.DefaultConfig(d.cfg.WorkspaceRoot, d.cfg.StatePath("queue.json"))
	qcfg.TTL = d.cfg.TaskTTL()
	qcfg.MaxConcurrent = d.cfg.MaxConcurrent
	d.queue = queue.New(qcfg, d.registry, d.bus)

	d.scheduler = schedule.New(d.queue, d.bus, d.cfg.StatePath("schedules.json"),
		schedule.Defaults(d.settings))

	w, err := watcher.New(watcher.Config{
		WorkspaceRoot: d.cfg.WorkspaceRoot,
		Roots:         d.cfg.WatchRoots,
		IgnoreDirs:    d.cfg.IgnoreDirs,
		Debounce:      d.cfg.Debounce(),
	}, d.queue, d.bus)
	if err != nil {
		releasePIDFile(d.cfg.StatePath("daemon.pid"))
		return fmt.Errorf("creating watcher: %w", err)
	}
	d.watcher = w

	if d.cfg.ArchiveEnabled {
		archive, err := storage.Open(d.cfg.StatePath("archive.db"))
		if err != nil {
			// Archive is a trend-data nicety, not operational state
			d.logger.Warn("result archive unavailable: %v", err)
		} else {
			d.archive = archive
		}
	}

	d.subscribeListeners()

	restored, err := d.queue.Restore()
	if err != nil {
		d.logger.Warn("queue restore failed: %v", err)
	} else if restored > 0 {
		d.logger.Info("restored %d queued task(s) from previous run", restored)
	}

	if err := d.queue.Start(); err != nil {
		releasePIDFile(d.cfg.StatePath("daemon.pid"))
		return err
	}
	if err := d.scheduler.Start(); err != nil {
		releasePIDFile(d.cfg.StatePath("daemon.pid"))
		return err
	}
	if err := d.watcher.Start(); err != nil {
		releasePIDFile(d.cfg.StatePath("daemon.pid"))
		return fmt.Errorf("starting watcher: %w", err)
	}

	d.installSignalHandlers()
	go d.heartbeatLoop()

	d.mu.Lock()
	d.running = true
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.logger.Info("daemon started (pid %d, workspace %s)", os.Getpid(), d.cfg.WorkspaceRoot)
	d.bus.Emit(events.EventDaemonStarted, map[string]any{
		"pid":       os.Getpid(),
		"workspace": d.cfg.WorkspaceRoot,
	})
	return nil
}

// Stop runs the graceful drain exactly once: stop the trigger sources,
// wait for in-flight work up to the drain deadline, persist a final health
// snapshot, and release every resource.
func (d *Daemon) Stop(ctx context.Context) {
	d.stopOnce.Do(func() { d.stop(ctx) })
}

func (d *Daemon) stop(ctx context.Context) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.bus.Emit(events.EventDaemonStopping, nil)
	d.logger.Info("daemon stopping")

	// Trigger sources first so no new work arrives during the drain
	d.scheduler.Stop()
	d.watcher.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, d.cfg.DrainTimeout())
	defer cancel()
	if err := d.queue.Drain(drainCtx); err != nil {
		d.logger.Warn("drain deadline elapsed with tasks still running")
	}
	d.queue.Stop()

	d.writeFinalSnapshot()

	close(d.heartbeatStopCh)
	<-d.heartbeatDoneCh

	if d.archive != nil {
		_ = d.archive.Close()
	}

	for _, unsub := range d.unsubscribe {
		unsub()
	}
	d.unsubscribe = nil
	if d.signalCh != nil {
		signal.Stop(d.signalCh)
	}

	releasePIDFile(d.cfg.StatePath("daemon.pid"))

	d.bus.Emit(events.EventDaemonStopped, nil)
	d.logger.Info("daemon stopped")
	d.bus.Clear()
}

// Run starts the daemon and blocks until a termination signal arrives or
// the context is cancelled, then stops and returns.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	select {
	case sig := <-d.signalCh:
		d.logger.Info("received signal %s", sig)
	case <-ctx.Done():
	}
	d.Stop(context.Background())
	return nil
}

// IsRunning returns whether the daemon is live.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Bus exposes the event bus for inspection surfaces.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Queue exposes the task queue for inspection surfaces.
func (d *Daemon) Queue() *queue.Queue { return d.queue }

// Registry exposes the scanner registry.
func (d *Daemon) Registry() *scanner.Registry { return d.registry }

func (d *Daemon) installSignalHandlers() {
	d.signalCh = make(chan os.Signal, 1)
	signal.Notify(d.signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

// subscribeListeners attaches the supervisor's event listeners: log lines
// for task/schedule/watcher activity, the scan-result cache, and archive
// writes.
func (d *Daemon) subscribeListeners() {
	sub := func(t events.EventType, h events.Handler) {
		d.unsubscribe = append(d.unsubscribe, d.bus.Subscribe(t, h))
	}

	sub(events.EventTaskQueued, func(e events.Event) {
		d.logger.Info("task queued: %v (%v, %v)", e.Data["scanner"], e.Data["priority"], e.Data["source"])
	})
	sub(events.EventTaskStarted, func(e events.Event) {
		d.logger.Info("task started: %v", e.Data["scanner"])
	})
	sub(events.EventTaskCompleted, func(e events.Event) {
		d.logger.Info("task completed: %v (%v in %v)", e.Data["scanner"], e.Data["status"], e.Data["duration"])
	})
	sub(events.EventTaskFailed, func(e events.Event) {
		d.logger.Error("task failed: %v: %v", e.Data["scanner"], e.Data["error"])
	})
	sub(events.EventTaskExpired, func(e events.Event) {
		d.logger.Warn("task expired before running: %v (age %v)", e.Data["scanner"], e.Data["age"])
	})
	sub(events.EventScheduleTriggered, func(e events.Event) {
		d.logger.Info("schedule triggered: %v", e.Data["entry"])
	})
	sub(events.EventWatcherChange, func(e events.Event) {
		d.logger.Info("file changed: %v (%v)", e.Data["path"], e.Data["op"])
	})
	sub(events.EventWatcherError, func(e events.Event) {
		d.logger.Warn("watcher error: %v", e.Data["error"])
	})

	sub(events.EventScanCompleted, func(e events.Event) {
		result, ok := e.Data["result"].(*types.ScanResult)
		if !ok {
			return
		}
		d.mu.Lock()
		d.resultCache[result.Scanner] = result
		d.mu.Unlock()

		if d.archive != nil {
			score, counted := health.ComponentScore(result)
			if !counted {
				score = 0
			}
			if err := d.archive.RecordResult(context.Background(), result, score); err != nil {
				d.logger.Warn("archive write failed: %v", err)
			}
		}
	})
}

// writeFinalSnapshot aggregates the cached results into a health snapshot,
// persists it, and appends it to the rolling history.
func (d *Daemon) writeFinalSnapshot() {
	d.mu.Lock()
	results := make([]*types.ScanResult, 0, len(d.resultCache))
	var lastDuration int64
	for _, r := range d.resultCache {
		results = append(results, r)
		if r.DurationMS > lastDuration {
			lastDuration = r.DurationMS
		}
	}
	d.mu.Unlock()

	if len(results) == 0 {
		return
	}

	snapshot := health.BuildSnapshot(results, d.settings.Weights(d.registry.IDs()), types.WorkspaceHealth{
		Packages:         countPackages(d.cfg.WorkspaceRoot),
		LastScanDuration: lastDuration,
	})

	if err := health.SaveSnapshot(d.cfg.StatePath("health.json"), snapshot); err != nil {
		d.logger.Warn("health snapshot write failed: %v", err)
	}
	if err := health.AppendHistory(d.cfg.StatePath("health-history.json"), snapshot, d.cfg.HistoryRetention()); err != nil {
		d.logger.Warn("health history write failed: %v", err)
	}
	d.bus.Emit(events.EventHealthUpdated, map[string]any{
		"score":  snapshot.Overall.Score,
		"status": string(snapshot.Overall.Status),
	})
}

// countPackages counts immediate subdirectories holding a go.mod or
// package.json, which is how the workspace defines a "package".
func countPackages(root string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == config.StateDirName || name == ".git" || name == "node_modules" {
			continue
		}
		for _, marker := range []string{"go.mod", "package.json"} {
			if _, err := os.Stat(fmt.Sprintf("%s/%s/%s", root, name, marker)); err == nil {
				count++
				break
			}
		}
	}
	return count
}
