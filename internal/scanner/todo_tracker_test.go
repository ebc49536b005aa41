package scanner

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

func TestTodoTrackerCountsMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", `package main

// TODO: handle the empty case
func run() {
	// FIXME: leaks the handle
}
`)

	s := NewTodoTracker()
	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: dir})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if result.Metrics["markers"] != 2 {
		t.Errorf("expected 2 markers, got %v", result.Metrics["markers"])
	}
	// Volume below the threshold keeps the scan green
	if result.Status != types.StatusPass {
		t.Errorf("expected pass below threshold, got %s", result.Status)
	}
}

func TestTodoTrackerVolumeDegrades(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("package main\n")
	for i := 0; i < todoWarnThreshold+5; i++ {
		fmt.Fprintf(&b, "// TODO: item %d\n", i)
	}
	writeFile(t, dir, "backlog.go", b.String())

	s := NewTodoTracker()
	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: dir})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if result.Status != types.StatusWarn {
		t.Errorf("expected warn above threshold, got %s", result.Status)
	}
	if len(result.Warnings) != todoWarnThreshold+5 {
		t.Errorf("expected %d warnings, got %d", todoWarnThreshold+5, len(result.Warnings))
	}
}
