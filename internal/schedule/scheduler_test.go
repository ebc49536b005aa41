package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// recordingEnqueuer captures enqueue calls
type recordingEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
}

type enqueueCall struct {
	scanner  string
	source   types.TaskSource
	priority types.Priority
}

func (r *recordingEnqueuer) Enqueue(scannerID string, source types.TaskSource, priority types.Priority, files []string, options map[string]any) *types.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, enqueueCall{scannerID, source, priority})
	return &types.Task{ID: "t", Scanner: scannerID}
}

func (r *recordingEnqueuer) snapshot() []enqueueCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enqueueCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func testEntries() []Entry {
	return []Entry{
		{ID: "alpha-hourly", Name: "Alpha", Scanner: "alpha", IntervalMS: time.Hour.Milliseconds(), Enabled: true},
		{ID: "beta-daily", Name: "Beta", Scanner: "beta", IntervalMS: (24 * time.Hour).Milliseconds(), Enabled: true},
	}
}

func noJitter(s *Scheduler) {
	s.jitterFn = func(time.Duration) time.Duration { return 0 }
}

func TestStartPersistsMergedState(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")
	enq := &recordingEnqueuer{}

	s := New(enq, events.NewBus(), statePath, testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	defer s.Stop()

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var persisted []Entry
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "alpha-hourly", persisted[0].ID)
}

func TestPersistenceFixpoint(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")

	// First load-then-save cycle
	s1 := New(&recordingEnqueuer{}, events.NewBus(), statePath, testEntries())
	noJitter(s1)
	require.NoError(t, s1.Start())
	s1.Stop()
	first, err := os.ReadFile(statePath)
	require.NoError(t, err)

	// Second cycle over the produced file is byte-stable (no lastRun set,
	// so no catch-up mutates anything)
	s2 := New(&recordingEnqueuer{}, events.NewBus(), statePath, testEntries())
	noJitter(s2)
	require.NoError(t, s2.Start())
	s2.Stop()
	second, err := os.ReadFile(statePath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestMergeInheritsPersistedFields(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")
	lastRun := time.Now().Add(-30 * time.Minute).Round(time.Second)

	persisted := []Entry{
		{ID: "alpha-hourly", Scanner: "alpha", IntervalMS: time.Hour.Milliseconds(), Enabled: false, LastRun: &lastRun},
		{ID: "removed-entry", Scanner: "gone", IntervalMS: 1000, Enabled: true},
	}
	data, _ := json.MarshalIndent(persisted, "", "  ")
	require.NoError(t, os.WriteFile(statePath, data, 0644))

	s := New(&recordingEnqueuer{}, events.NewBus(), statePath, testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	defer s.Stop()

	entries := s.Entries()
	require.Len(t, entries, 2, "removed defaults vanish, new defaults appear")

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	assert.False(t, byID["alpha-hourly"].Enabled, "persisted enabled wins")
	require.NotNil(t, byID["alpha-hourly"].LastRun)
	assert.True(t, byID["alpha-hourly"].LastRun.Equal(lastRun))
	assert.True(t, byID["beta-daily"].Enabled, "new default keeps its default enabled")
}

func TestCatchUpEnqueuesOverdueAtLowPriority(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")
	overdue := time.Now().Add(-2 * time.Hour)

	persisted := []Entry{
		{ID: "alpha-hourly", Scanner: "alpha", IntervalMS: time.Hour.Milliseconds(), Enabled: true, LastRun: &overdue},
	}
	data, _ := json.MarshalIndent(persisted, "", "  ")
	require.NoError(t, os.WriteFile(statePath, data, 0644))

	enq := &recordingEnqueuer{}
	s := New(enq, events.NewBus(), statePath, testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	defer s.Stop()

	calls := enq.snapshot()
	require.Len(t, calls, 1, "only the overdue entry catches up")
	assert.Equal(t, "alpha", calls[0].scanner)
	assert.Equal(t, types.SourceScheduler, calls[0].source)
	assert.Equal(t, types.PriorityLow, calls[0].priority)

	// Catch-up advanced lastRun so the entry is no longer overdue
	for _, e := range s.Entries() {
		if e.ID == "alpha-hourly" {
			require.NotNil(t, e.LastRun)
			assert.WithinDuration(t, time.Now(), *e.LastRun, 5*time.Second)
		}
	}
}

func TestFireEnqueuesNormalAndPersists(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")
	enq := &recordingEnqueuer{}
	bus := events.NewBus()

	var triggered []events.Event
	var mu sync.Mutex
	bus.Subscribe(events.EventScheduleTriggered, func(e events.Event) {
		mu.Lock()
		triggered = append(triggered, e)
		mu.Unlock()
	})

	s := New(enq, bus, statePath, testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	defer s.Stop()

	s.fire("alpha-hourly")

	calls := enq.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, types.PriorityNormal, calls[0].priority)

	mu.Lock()
	assert.Len(t, triggered, 1)
	mu.Unlock()

	// lastRun/nextRun recorded and persisted
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var persisted []Entry
	require.NoError(t, json.Unmarshal(data, &persisted))
	for _, e := range persisted {
		if e.ID == "alpha-hourly" {
			require.NotNil(t, e.LastRun)
			require.NotNil(t, e.NextRun)
			assert.True(t, e.NextRun.After(*e.LastRun))
		}
	}
}

func TestFireAfterStopIsDropped(t *testing.T) {
	enq := &recordingEnqueuer{}
	s := New(enq, events.NewBus(), filepath.Join(t.TempDir(), "schedules.json"), testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	s.Stop()

	s.fire("alpha-hourly")
	assert.Empty(t, enq.snapshot(), "timer firing during shutdown is dropped")
}

func TestSetEnabled(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "schedules.json")
	enq := &recordingEnqueuer{}
	s := New(enq, events.NewBus(), statePath, testEntries())
	noJitter(s)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.SetEnabled("alpha-hourly", false))

	// Disabled entries do not fire
	s.fire("alpha-hourly")
	assert.Empty(t, enq.snapshot())

	// Persisted immediately
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	var persisted []Entry
	require.NoError(t, json.Unmarshal(data, &persisted))
	for _, e := range persisted {
		if e.ID == "alpha-hourly" {
			assert.False(t, e.Enabled)
		}
	}

	assert.Error(t, s.SetEnabled("no-such-entry", true))
}

func TestShortIntervalStillFires(t *testing.T) {
	enq := &recordingEnqueuer{}
	s := New(enq, events.NewBus(), filepath.Join(t.TempDir(), "schedules.json"), []Entry{
		{ID: "fast", Name: "Fast", Scanner: "fast", IntervalMS: 30, Enabled: true},
	})
	// Real jitter: bound is interval/10; must not panic or block firing
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(enq.snapshot()) >= 1
	}, 2*time.Second, 10*time.Millisecond, "short-interval entry must still fire")
}
