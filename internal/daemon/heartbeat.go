package daemon

import (
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/events"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// heartbeatLoop periodically writes the live state snapshot, checks log
// rotation, and watches memory usage.
func (d *Daemon) heartbeatLoop() {
	defer close(d.heartbeatDoneCh)

	ticker := time.NewTicker(d.cfg.HeartbeatPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-d.heartbeatStopCh:
			return
		case <-ticker.C:
			d.heartbeat()
		}
	}
}

func (d *Daemon) heartbeat() {
	state := d.stateSnapshot()

	d.bus.Emit(events.EventDaemonHeartbeat, map[string]any{
		"pid":            state.PID,
		"uptime_ms":      state.UptimeMS,
		"tasksQueued":    state.TasksQueued,
		"tasksCompleted": state.TasksCompleted,
		"memoryUsageMB":  state.MemoryUsageMB,
	})

	d.writeState(state)
	d.logger.CheckRotate()

	if state.MemoryUsageMB > d.cfg.MemoryThresholdMB {
		d.bus.Emit(events.EventDaemonMemoryWarning, map[string]any{
			"memoryUsageMB": state.MemoryUsageMB,
			"thresholdMB":   d.cfg.MemoryThresholdMB,
		})
		d.logger.Warn("memory usage %.1f MB exceeds threshold %.1f MB",
			state.MemoryUsageMB, d.cfg.MemoryThresholdMB)
	}
}

// stateSnapshot assembles the daemon-state.json payload.
func (d *Daemon) stateSnapshot() types.DaemonState {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	now := time.Now()
	return types.DaemonState{
		PID:             os.Getpid(),
		StartedAt:       startedAt,
		UptimeMS:        now.Sub(startedAt).Milliseconds(),
		LastHeartbeat:   now,
		TasksCompleted:  d.queue.CompletedCount(),
		TasksQueued:     d.queue.Size(),
		MemoryUsageMB:   float64(mem.HeapAlloc) / 1024 / 1024,
		SchedulerActive: d.scheduler.IsRunning(),
		WatcherActive:   d.watcher.IsRunning(),
	}
}

// writeState persists the snapshot via write-then-rename. Failures are
// logged and swallowed.
func (d *Daemon) writeState(state types.DaemonState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		d.logger.Warn("state snapshot serialization failed: %v", err)
		return
	}
	path := d.cfg.StatePath("daemon-state.json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		d.logger.Warn("state snapshot write failed: %v", err)
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		d.logger.Warn("state snapshot commit failed: %v", err)
	}
}
