package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// mergePersistedLocked folds schedules.json into the default entry set.
// Every default stays present; persisted lastRun/nextRun/enabled are
// inherited by id. Defaults not in the file appear untouched; persisted
// ids with no matching default vanish. A corrupt file means defaults only.
func (s *Scheduler) mergePersistedLocked() {
	if s.statePath == "" {
		return
	}
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}
	var persisted []Entry
	if err := json.Unmarshal(data, &persisted); err != nil {
		return
	}
	for i := range persisted {
		p := &persisted[i]
		e, ok := s.entries[p.ID]
		if !ok {
			continue
		}
		e.LastRun = p.LastRun
		e.NextRun = p.NextRun
		e.Enabled = p.Enabled
	}
}

// persistLocked writes the full entry set as a JSON array. Failures are
// logged and swallowed.
func (s *Scheduler) persistLocked() {
	if s.statePath == "" {
		return
	}

	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logPersistenceWarning(err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.statePath), 0755); err != nil {
		logPersistenceWarning(err)
		return
	}
	tmpPath := s.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		logPersistenceWarning(err)
		return
	}
	if err := os.Rename(tmpPath, s.statePath); err != nil {
		_ = os.Remove(tmpPath)
		logPersistenceWarning(err)
	}
}
