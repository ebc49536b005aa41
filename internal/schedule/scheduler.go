// Package schedule drives periodic scanner invocations. Entries merge
// built-in defaults with persisted state, catch up overdue work at
// startup, and jitter their timers to avoid thundering herds.
package schedule

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// Enqueuer is the slice of the task queue the scheduler needs.
type Enqueuer interface {
	Enqueue(scannerID string, source types.TaskSource, priority types.Priority, files []string, options map[string]any) *types.Task
}

// Entry is one periodic scanner invocation rule. The scheduler owns the
// set; it is persisted after every trigger and every enable/disable.
type Entry struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Scanner    string         `json:"scanner"`
	IntervalMS int64          `json:"interval_ms"`
	Enabled    bool           `json:"enabled"`
	LastRun    *time.Time     `json:"lastRun,omitempty"`
	NextRun    *time.Time     `json:"nextRun,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// Interval returns the entry's interval as a duration.
func (e *Entry) Interval() time.Duration {
	return time.Duration(e.IntervalMS) * time.Millisecond
}

// Scheduler arms one timer per enabled entry and routes triggers into the
// queue.
type Scheduler struct {
	enq       Enqueuer
	bus       *events.Bus
	statePath string

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	timers  map[string]*time.Timer
	running bool

	// jitterFn returns a delay in [0, 0.1*interval); swappable in tests.
	jitterFn func(interval time.Duration) time.Duration
}

// New creates a scheduler over the given default entries. defaults defines
// the full entry set; persisted state in statePath is merged in at Start.
func New(enq Enqueuer, bus *events.Bus, statePath string, defaults []Entry) *Scheduler {
	s := &Scheduler{
		enq:       enq,
		bus:       bus,
		statePath: statePath,
		entries:   make(map[string]*Entry),
		timers:    make(map[string]*time.Timer),
		jitterFn: func(interval time.Duration) time.Duration {
			bound := int64(interval) / 10
			if bound <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(bound))
		},
	}
	for i := range defaults {
		e := defaults[i]
		s.entries[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	return s
}

// Start merges persisted state, performs catch-up for overdue entries, and
// arms the per-entry timers.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mergePersistedLocked()

	now := time.Now()
	var catchUp []*Entry
	for _, id := range s.order {
		e := s.entries[id]
		if !e.Enabled {
			continue
		}
		if e.LastRun != nil && now.Sub(*e.LastRun) > e.Interval() {
			catchUp = append(catchUp, e)
		}
	}
	// Catch-up marks lastRun before the timers arm so an overdue entry is
	// not immediately re-triggered
	for _, e := range catchUp {
		run := now
		e.LastRun = &run
		next := now.Add(e.Interval())
		e.NextRun = &next
	}
	for _, id := range s.order {
		e := s.entries[id]
		if e.Enabled {
			s.armLocked(e, now)
		}
	}
	s.persistLocked()
	s.mu.Unlock()

	for _, e := range catchUp {
		s.enq.Enqueue(e.Scanner, types.SourceScheduler, types.PriorityLow, nil, e.Options)
	}
	return nil
}

// Stop cancels every armed timer. A timer that fires during shutdown is
// dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries returns a copy of the current entry set in definition order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	return out
}

// SetEnabled flips an entry while running, arming or cancelling its timer
// immediately. Always persists.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown schedule entry %q", id)
	}
	e.Enabled = enabled
	if s.running {
		if enabled {
			s.armLocked(e, time.Now())
		} else if t, armed := s.timers[id]; armed {
			t.Stop()
			delete(s.timers, id)
		}
	}
	s.persistLocked()
	s.mu.Unlock()

	s.bus.Emit(events.EventScheduleUpdated, map[string]any{
		"entry":   id,
		"enabled": enabled,
	})
	return nil
}

// armLocked schedules the entry's next firing at
// max(nextRun-now, 0) + jitter. Jitter only ever delays; an interval
// shorter than the jitter bound still fires.
func (s *Scheduler) armLocked(e *Entry, now time.Time) {
	if t, armed := s.timers[e.ID]; armed {
		t.Stop()
	}

	var delay time.Duration
	if e.NextRun != nil {
		delay = e.NextRun.Sub(now)
		if delay < 0 {
			delay = 0
		}
	} else {
		delay = e.Interval()
	}
	delay += s.jitterFn(e.Interval())

	id := e.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// fire handles one timer elapse: enqueue, record run times, persist, re-arm.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	e, ok := s.entries[id]
	if !ok || !e.Enabled {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	run := now
	e.LastRun = &run
	next := now.Add(e.Interval())
	e.NextRun = &next
	s.armLocked(e, now)
	s.persistLocked()
	scanner := e.Scanner
	opts := e.Options
	s.mu.Unlock()

	s.bus.Emit(events.EventScheduleTriggered, map[string]any{
		"entry":   id,
		"scanner": scanner,
	})
	s.enq.Enqueue(scanner, types.SourceScheduler, types.PriorityNormal, nil, opts)
}

func logPersistenceWarning(err error) {
	fmt.Fprintf(os.Stderr, "Warning: failed to persist schedule state: %v\n", err)
}
