package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l := New(Config{Path: path})

	l.Info("daemon started (pid %d)", 1234)
	l.Warn("drain deadline elapsed")
	l.Error("task failed: %s", "secret-patterns")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %d", len(lines))
	}

	if !strings.Contains(lines[0], "] INFO daemon started (pid 1234)") {
		t.Errorf("unexpected INFO line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "] WARN ") {
		t.Errorf("unexpected WARN line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "] ERROR task failed: secret-patterns") {
		t.Errorf("unexpected ERROR line: %q", lines[2])
	}
	// Timestamp prefix is bracketed RFC 3339
	if !strings.HasPrefix(lines[0], "[") || !strings.Contains(lines[0], "T") {
		t.Errorf("expected ISO-8601 prefix, got %q", lines[0])
	}
}

func TestRotationPreservesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l := New(Config{Path: path, MaxSizeBytes: 1, MaxBackups: 3})

	l.Info("the last record before rotation")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	l.CheckRotate()

	// Every byte written before rotation is readable via .1
	rotated, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	if string(rotated) != string(before) {
		t.Error("rotation lost bytes")
	}

	// A fresh empty log exists
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected fresh log file: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty fresh log, got %d bytes", info.Size())
	}
}

func TestRotationShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l := New(Config{Path: path, MaxSizeBytes: 1, MaxBackups: 2})

	l.Info("generation one")
	l.CheckRotate()
	l.Info("generation two")
	l.CheckRotate()
	l.Info("generation three")
	l.CheckRotate()

	one, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatal(err)
	}
	two, err := os.ReadFile(path + ".2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(one), "generation three") {
		t.Errorf(".1 should hold the newest rotated content, got %q", one)
	}
	if !strings.Contains(string(two), "generation two") {
		t.Errorf(".2 should hold the older content, got %q", two)
	}
	// The oldest generation fell off the end
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Error("expected no .3 backup with MaxBackups=2")
	}
}

func TestRotationBelowThresholdIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l := New(Config{Path: path, MaxSizeBytes: 1 << 20})

	l.Info("small record")
	l.CheckRotate()

	if _, err := os.Stat(path + ".1"); err == nil {
		t.Error("expected no rotation below the size threshold")
	}
}

func TestMissingLogFileIsNonFatal(t *testing.T) {
	l := New(Config{Path: filepath.Join(t.TempDir(), "daemon.log")})
	// Rotation before any write must not panic or create files
	l.CheckRotate()
}
