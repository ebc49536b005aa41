package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "scanners.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if s.Weight("anything") != 1 {
		t.Errorf("expected default weight 1, got %d", s.Weight("anything"))
	}
	if s.IntervalOverride("anything") != 0 {
		t.Error("expected no interval override")
	}
	if s.EnabledOverride("anything") != nil {
		t.Error("expected no enabled override")
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanners.yaml")
	content := `scanners:
  secret-patterns:
    weight: 3
    interval: 2h
  todo-tracker:
    enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if s.Weight("secret-patterns") != 3 {
		t.Errorf("expected weight 3, got %d", s.Weight("secret-patterns"))
	}
	if s.IntervalOverride("secret-patterns") != 2*time.Hour {
		t.Errorf("expected 2h interval, got %v", s.IntervalOverride("secret-patterns"))
	}
	if enabled := s.EnabledOverride("todo-tracker"); enabled == nil || *enabled {
		t.Errorf("expected todo-tracker disabled, got %v", enabled)
	}

	weights := s.Weights([]string{"secret-patterns", "license-headers"})
	if weights["secret-patterns"] != 3 || weights["license-headers"] != 1 {
		t.Errorf("unexpected weights: %v", weights)
	}
}

func TestLoadSettingsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanners.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("expected parse error for corrupt settings")
	}
}
