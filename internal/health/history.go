package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// SaveSnapshot writes the latest snapshot to health.json via
// write-then-rename.
func SaveSnapshot(path string, s *types.HealthSnapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadSnapshot reads health.json.
func LoadSnapshot(path string) (*types.HealthSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s types.HealthSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &s, nil
}

// AppendHistory appends the snapshot to health-history.json and trims
// entries older than the retention window. A corrupt history file is
// replaced rather than propagated.
func AppendHistory(path string, s *types.HealthSnapshot, retention time.Duration) error {
	if retention == 0 {
		retention = DefaultRetention
	}

	var history []types.HealthSnapshot
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &history)
	}

	history = append(history, *s)
	cutoff := time.Now().Add(-retention)
	kept := history[:0]
	for _, h := range history {
		if h.Timestamp.After(cutoff) {
			kept = append(kept, h)
		}
	}

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing history: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadHistory reads health-history.json; a missing file is an empty
// history.
func LoadHistory(path string) ([]types.HealthSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var history []types.HealthSnapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	return history, nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("committing %s: %w", filepath.Base(path), err)
	}
	return nil
}
