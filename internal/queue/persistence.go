package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// persistedState is the queue.json wire format.
type persistedState struct {
	Queue       []*types.Task `json:"queue"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// persistLocked serializes the queued subset to disk. Failures are logged
// and swallowed; in-memory state remains the source of truth until the
// next successful write. Callers hold q.mu.
func (q *Queue) persistLocked() {
	if q.cfg.StatePath == "" {
		return
	}

	state := persistedState{
		Queue:       q.pending,
		LastUpdated: time.Now(),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		logPersistenceWarning(err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(q.cfg.StatePath), 0755); err != nil {
		logPersistenceWarning(err)
		return
	}

	// Write-then-rename so readers never see a torn file
	tmpPath := q.cfg.StatePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		logPersistenceWarning(err)
		return
	}
	if err := os.Rename(tmpPath, q.cfg.StatePath); err != nil {
		_ = os.Remove(tmpPath)
		logPersistenceWarning(err)
	}
}

// Restore reloads persisted queued tasks, preserving CreatedAt so
// expiration stays monotonic across restarts: tasks already past TTL are
// re-queued and then aged out (with a task:expired event) on the first
// executor tick, never run. A missing or corrupt file restores nothing.
// Returns the restored count.
func (q *Queue) Restore() (int, error) {
	if q.cfg.StatePath == "" {
		return 0, nil
	}

	data, err := os.ReadFile(q.cfg.StatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading queue state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state is treated as absent
		return 0, nil
	}

	restored := 0
	q.mu.Lock()
	for _, t := range state.Queue {
		if t == nil || t.Scanner == "" {
			continue
		}
		if q.duplicateExistsLocked(t.Scanner, t.Files) {
			continue
		}
		t.Status = types.TaskQueued
		t.Files = normalizeFileSet(t.Files)
		q.pending = append(q.pending, t)
		restored++
	}
	q.mu.Unlock()

	if restored > 0 {
		q.kickExecutor()
	}
	return restored, nil
}
