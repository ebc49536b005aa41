package scanner

import (
	"context"
	"fmt"
	"testing"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

func newTestAuditor() *DependencyAudit {
	s := NewDependencyAudit()
	s.VulnTool = "" // no subprocess in unit tests
	return s
}

func TestDependencyAuditFlagsLocalReplace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", `module example.com/app

go 1.22

require example.com/lib v1.2.3

replace example.com/lib => ../lib
`)

	s := newTestAuditor()
	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: dir})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if result.Status != types.StatusFail {
		t.Errorf("expected fail, got %s", result.Status)
	}
	if len(result.Violations) != 1 || result.Violations[0].ID != "dependency-audit/local-replace" {
		t.Errorf("expected one local-replace violation, got %+v", result.Violations)
	}
}

func TestDependencyAuditFlagsRiskyVersions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", `module example.com/app

go 1.22

require (
	example.com/tagged v1.5.0
	example.com/young v0.3.1
	example.com/pinned v0.0.0-20240101120000-abcdefabcdef
)
`)

	s := newTestAuditor()
	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: dir})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	ids := map[string]int{}
	for _, w := range result.Warnings {
		ids[w.ID]++
	}
	if ids["dependency-audit/pseudo-version"] != 1 {
		t.Errorf("expected 1 pseudo-version warning, got %+v", ids)
	}
	if ids["dependency-audit/pre-v1"] != 1 {
		t.Errorf("expected 1 pre-v1 warning, got %+v", ids)
	}
	if result.Metrics["dependencies"] != 3 {
		t.Errorf("expected 3 dependencies counted, got %v", result.Metrics["dependencies"])
	}
}

func TestDependencyAuditSkipsWithoutModules(t *testing.T) {
	s := newTestAuditor()
	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if result.Status != types.StatusSkipped {
		t.Errorf("expected skipped, got %s", result.Status)
	}
}

func TestDependencyAuditMissingTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/app\n\ngo 1.22\n")

	s := NewDependencyAudit()
	s.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }

	result, err := s.Scan(context.Background(), types.ScanContext{WorkspaceRoot: dir})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.ID == "dependency-audit/tool-missing" {
			found = true
		}
	}
	if !found {
		t.Error("expected a tool-missing notice when the vuln tool is absent")
	}
}

func TestIsPseudoVersion(t *testing.T) {
	if !isPseudoVersion("v0.0.0-20240101120000-abcdefabcdef") {
		t.Error("expected pseudo-version to be detected")
	}
	if isPseudoVersion("v1.2.3") {
		t.Error("tagged release misdetected as pseudo-version")
	}
	if isPseudoVersion("v1.2.3-beta.1") {
		t.Error("prerelease misdetected as pseudo-version")
	}
}
