// Package queue implements the daemon's priority task queue: serialized
// scanner execution with priority ordering, at-most-one-in-flight per
// scanner, coalescing of redundant requests, TTL expiration, and
// crash-recoverable persistence.
package queue

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/scanner"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// Config holds queue configuration.
type Config struct {
	WorkspaceRoot string
	StatePath     string        // queue.json location; empty disables persistence
	TTL           time.Duration // task age limit (default: 1 hour)
	MaxConcurrent int64         // concurrent task limit (default: 1)
	PollInterval  time.Duration // executor wake interval (default: 250ms)
	HistoryLimit  int           // completion history high-water mark (default: 100)
	HistoryTrim   int           // entries kept after trimming (default: 50)
}

// DefaultConfig returns default queue configuration.
func DefaultConfig(workspaceRoot, statePath string) Config {
	return Config{
		WorkspaceRoot: workspaceRoot,
		StatePath:     statePath,
		TTL:           time.Hour,
		MaxConcurrent: 1,
		PollInterval:  250 * time.Millisecond,
		HistoryLimit:  100,
		HistoryTrim:   50,
	}
}

func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 1
	}
	if c.PollInterval == 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 100
	}
	if c.HistoryTrim == 0 {
		c.HistoryTrim = 50
	}
}

// Stats summarizes queue state for inspection surfaces.
type Stats struct {
	Queued     int            `json:"queued"`
	Running    int            `json:"running"`
	Completed  uint64         `json:"completed"`
	Failed     uint64         `json:"failed"`
	Expired    uint64         `json:"expired"`
	ByPriority map[string]int `json:"byPriority"`
}

// Queue owns every task from enqueue to archive. Other components observe
// lifecycle transitions through bus events only.
type Queue struct {
	cfg Config
	reg *scanner.Registry
	bus *events.Bus
	sem *semaphore.Weighted

	mu      sync.Mutex
	pending []*types.Task // enqueue order preserved for FIFO within a priority
	running map[string]*types.Task
	history []*types.Task
	started bool

	completedCount uint64
	failedCount    uint64
	expiredCount   uint64

	kick   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a queue. The registry resolves scanner ids at execution time;
// the bus carries lifecycle events.
func New(cfg Config, reg *scanner.Registry, bus *events.Bus) *Queue {
	cfg.applyDefaults()
	return &Queue{
		cfg:     cfg,
		reg:     reg,
		bus:     bus,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		running: make(map[string]*types.Task),
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enqueue adds a scan request. Returns nil when the request coalesces into
// an existing live task: a queued or running task with the same scanner and
// an equal file set absorbs the new request.
//
// Enqueue is safe to call from inside event listeners.
func (q *Queue) Enqueue(scannerID string, source types.TaskSource, priority types.Priority, files []string, options map[string]any) *types.Task {
	q.mu.Lock()
	if q.duplicateExistsLocked(scannerID, files) {
		q.mu.Unlock()
		return nil
	}

	task := &types.Task{
		ID:        uuid.New().String(),
		Scanner:   scannerID,
		Priority:  priority,
		Source:    source,
		Files:     normalizeFileSet(files),
		Options:   options,
		CreatedAt: time.Now(),
		Status:    types.TaskQueued,
	}
	q.pending = append(q.pending, task)
	q.persistLocked()
	q.mu.Unlock()

	q.bus.Emit(events.EventTaskQueued, map[string]any{
		"taskId":   task.ID,
		"scanner":  task.Scanner,
		"priority": task.Priority.String(),
		"source":   string(task.Source),
		"files":    len(task.Files),
	})
	q.kickExecutor()
	return task
}

// Size returns the number of queued (not running) tasks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RunningCount returns the number of in-flight tasks.
func (q *Queue) RunningCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// CompletedCount returns the number of tasks completed since start.
func (q *Queue) CompletedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completedCount
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	byPriority := make(map[string]int)
	for _, t := range q.pending {
		byPriority[t.Priority.String()]++
	}
	return Stats{
		Queued:     len(q.pending),
		Running:    len(q.running),
		Completed:  q.completedCount,
		Failed:     q.failedCount,
		Expired:    q.expiredCount,
		ByPriority: byPriority,
	}
}

// History returns a copy of the bounded completion history, newest last.
func (q *Queue) History() []*types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*types.Task, len(q.history))
	copy(out, q.history)
	return out
}

// Clear drops all queued tasks. Running tasks are unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.persistLocked()
	q.mu.Unlock()
}

// Drain blocks until no task is running or the context is done.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		idle := len(q.running) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start launches the executor loop.
func (q *Queue) Start() error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue is already running")
	}
	q.started = true
	q.mu.Unlock()

	go q.executorLoop()
	return nil
}

// Stop halts the executor loop. In-flight tasks run to completion; call
// Drain to wait for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	close(q.stopCh)
	<-q.doneCh
}

// executorLoop wakes on enqueues (kick) and on a poll tick to age out
// expired work even when nothing is being enqueued.
func (q *Queue) executorLoop() {
	defer close(q.doneCh)

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.kick:
		case <-ticker.C:
		}
		q.dispatch()
	}
}

// dispatch ages out expired tasks, then launches as many runnable tasks as
// the concurrency budget allows. Events are emitted outside the mutex so
// listeners may re-enter the queue.
func (q *Queue) dispatch() {
	now := time.Now()

	q.mu.Lock()
	expired := q.expireLocked(now)

	var launched []*types.Task
	for {
		task := q.nextRunnableLocked()
		if task == nil {
			break
		}
		if !q.sem.TryAcquire(1) {
			break
		}
		started := time.Now()
		task.Status = types.TaskRunning
		task.StartedAt = &started
		q.running[task.Scanner] = task
		q.removePendingLocked(task.ID)
		launched = append(launched, task)
	}
	if len(expired) > 0 || len(launched) > 0 {
		q.persistLocked()
	}
	q.mu.Unlock()

	for _, t := range expired {
		q.bus.Emit(events.EventTaskExpired, map[string]any{
			"taskId":  t.ID,
			"scanner": t.Scanner,
			"age":     now.Sub(t.CreatedAt).String(),
		})
	}
	for _, t := range launched {
		q.wg.Add(1)
		go q.execute(t)
	}
}

// execute runs one task to completion on its own goroutine.
func (q *Queue) execute(task *types.Task) {
	defer q.wg.Done()
	defer q.sem.Release(1)

	q.bus.Emit(events.EventTaskStarted, map[string]any{
		"taskId":   task.ID,
		"scanner":  task.Scanner,
		"priority": task.Priority.String(),
	})
	q.bus.Emit(events.EventScanStarted, map[string]any{
		"taskId":  task.ID,
		"scanner": task.Scanner,
	})

	result, err := q.runScan(task)

	completed := time.Now()
	q.mu.Lock()
	task.CompletedAt = &completed
	if err != nil {
		task.Status = types.TaskFailed
		task.Error = err.Error()
		q.failedCount++
	} else {
		task.Status = types.TaskCompleted
		q.completedCount++
	}
	delete(q.running, task.Scanner)
	q.history = append(q.history, task)
	if len(q.history) > q.cfg.HistoryLimit {
		q.history = q.history[len(q.history)-q.cfg.HistoryTrim:]
	}
	q.persistLocked()
	q.mu.Unlock()

	if err != nil {
		q.bus.Emit(events.EventTaskFailed, map[string]any{
			"taskId":  task.ID,
			"scanner": task.Scanner,
			"error":   err.Error(),
		})
	} else {
		q.bus.Emit(events.EventTaskCompleted, map[string]any{
			"taskId":   task.ID,
			"scanner":  task.Scanner,
			"status":   string(result.Status),
			"duration": task.Duration().String(),
		})
		q.bus.Emit(events.EventScanCompleted, map[string]any{
			"taskId":  task.ID,
			"scanner": task.Scanner,
			"result":  result,
		})
	}

	q.kickExecutor()
}

// runScan invokes the scanner, converting panics into errors so a broken
// scanner can never fault the executor.
func (q *Queue) runScan(task *types.Task) (result *types.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("scanner panicked: %v", r)
		}
	}()

	sc := types.ScanContext{
		WorkspaceRoot: q.cfg.WorkspaceRoot,
		Files:         task.Files,
		Options:       task.Options,
	}
	return q.reg.Run(context.Background(), task.Scanner, sc)
}

// expireLocked removes tasks older than TTL from the pending list.
func (q *Queue) expireLocked(now time.Time) []*types.Task {
	var expired []*types.Task
	kept := q.pending[:0]
	for _, t := range q.pending {
		if t.Age(now) > q.cfg.TTL {
			t.Status = types.TaskExpired
			q.expiredCount++
			expired = append(expired, t)
			continue
		}
		kept = append(kept, t)
	}
	q.pending = kept
	return expired
}

// nextRunnableLocked picks the highest-priority queued task whose scanner
// is not currently running. Pending order is enqueue order, so the first
// hit at the best priority is also the FIFO winner.
func (q *Queue) nextRunnableLocked() *types.Task {
	var best *types.Task
	for _, t := range q.pending {
		if _, busy := q.running[t.Scanner]; busy {
			continue
		}
		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}
	return best
}

func (q *Queue) removePendingLocked(id string) {
	for i, t := range q.pending {
		if t.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// duplicateExistsLocked implements coalescing: same scanner and equal file
// set against any queued or running task.
func (q *Queue) duplicateExistsLocked(scannerID string, files []string) bool {
	want := normalizeFileSet(files)
	for _, t := range q.pending {
		if t.Scanner == scannerID && fileSetsEqual(t.Files, want) {
			return true
		}
	}
	if t, ok := q.running[scannerID]; ok && fileSetsEqual(t.Files, want) {
		return true
	}
	return false
}

func (q *Queue) kickExecutor() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// normalizeFileSet sorts and deduplicates so set comparison is positional.
// An empty set stays nil: "no files" means a full scan, which is distinct
// from any scoped scan.
func normalizeFileSet(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func fileSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func logPersistenceWarning(err error) {
	fmt.Fprintf(os.Stderr, "Warning: failed to persist queue state: %v\n", err)
}
