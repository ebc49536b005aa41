package scanner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// auditToolTimeout bounds the external vulnerability tool invocation. The
// timeout is this scanner's own contract; the queue never cancels a
// running scan.
const auditToolTimeout = 30 * time.Second

// DependencyAudit inspects every go.mod in the workspace for replace
// directives pointing at local filesystem paths, pseudo-versions, and pre-v1
// dependencies, and optionally shells out to an external vulnerability
// tool (govulncheck by default).
type DependencyAudit struct {
	// VulnTool is the external tool invoked per module. Empty disables
	// the subprocess step.
	VulnTool string

	// lookPath is swappable in tests.
	lookPath func(string) (string, error)
}

// NewDependencyAudit creates the dependency audit scanner.
func NewDependencyAudit() *DependencyAudit {
	return &DependencyAudit{
		VulnTool: "govulncheck",
		lookPath: exec.LookPath,
	}
}

func (s *DependencyAudit) ID() string   { return "dependency-audit" }
func (s *DependencyAudit) Name() string { return "Dependency Audit" }

func (s *DependencyAudit) Description() string {
	return "Audits module dependencies for pseudo-versions, local replaces, and known vulnerabilities"
}

func (s *DependencyAudit) Category() types.Category { return types.CategorySecurity }
func (s *DependencyAudit) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *DependencyAudit) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	modFiles, err := findGoModFiles(sc.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("locating go.mod files: %w", err)
	}

	result := &types.ScanResult{
		Scanner: s.ID(),
		Metrics: map[string]float64{},
	}

	if len(modFiles) == 0 {
		result.Status = types.StatusSkipped
		result.Summary = "no go.mod files in workspace"
		return finishResult(result, start), nil
	}

	deps := 0
	for _, path := range modFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, viols, warns, err := s.auditModule(sc.WorkspaceRoot, path)
		if err != nil {
			result.Warnings = append(result.Warnings, types.Violation{
				ID:       "dependency-audit/unparsable",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("could not parse module file: %v", err),
				File:     relPath(sc.WorkspaceRoot, path),
			})
			continue
		}
		deps += n
		result.Violations = append(result.Violations, viols...)
		result.Warnings = append(result.Warnings, warns...)
	}

	// External vulnerability tool, bounded by its own timeout
	if s.VulnTool != "" {
		result.Warnings = append(result.Warnings, s.runVulnTool(ctx, sc.WorkspaceRoot)...)
	}

	result.Metrics["modules"] = float64(len(modFiles))
	result.Metrics["dependencies"] = float64(deps)
	result.Status = statusFor(len(result.Violations), len(result.Warnings))
	result.Summary = fmt.Sprintf("audited %d dependencies across %d module(s)", deps, len(modFiles))
	return finishResult(result, start), nil
}

// auditModule parses one go.mod and flags risky dependency shapes.
func (s *DependencyAudit) auditModule(root, path string) (int, []types.Violation, []types.Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, nil, err
	}
	mf, err := modfile.Parse(path, data, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	rel := relPath(root, path)
	var viols, warns []types.Violation

	for _, r := range mf.Replace {
		if r.New.Version == "" {
			// Filesystem replace: builds are not reproducible outside this machine
			viols = append(viols, types.Violation{
				ID:       "dependency-audit/local-replace",
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("replace %s => %s points at a local path", r.Old.Path, r.New.Path),
				File:     rel,
			})
		}
	}

	for _, req := range mf.Require {
		if req.Indirect {
			continue
		}
		v := req.Mod.Version
		if isPseudoVersion(v) {
			warns = append(warns, types.Violation{
				ID:       "dependency-audit/pseudo-version",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("%s pinned to pseudo-version %s (untagged commit)", req.Mod.Path, v),
				File:     rel,
			})
		} else if semver.IsValid(v) && semver.Major(v) == "v0" {
			warns = append(warns, types.Violation{
				ID:       "dependency-audit/pre-v1",
				Severity: types.SeverityInfo,
				Message:  fmt.Sprintf("%s is pre-v1 (%s); API may break between releases", req.Mod.Path, v),
				File:     rel,
			})
		}
	}

	return len(mf.Require), viols, warns, nil
}

// runVulnTool invokes the external vulnerability scanner with a hard
// timeout. A missing tool or non-zero exit degrades to a warning.
func (s *DependencyAudit) runVulnTool(ctx context.Context, root string) []types.Violation {
	if _, err := s.lookPath(s.VulnTool); err != nil {
		return []types.Violation{{
			ID:       "dependency-audit/tool-missing",
			Severity: types.SeverityInfo,
			Message:  fmt.Sprintf("%s not installed; vulnerability check skipped", s.VulnTool),
		}}
	}

	toolCtx, cancel := context.WithTimeout(ctx, auditToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(toolCtx, s.VulnTool, "./...")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if toolCtx.Err() == context.DeadlineExceeded {
		return []types.Violation{{
			ID:       "dependency-audit/tool-timeout",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("%s timed out after %s", s.VulnTool, auditToolTimeout),
		}}
	}
	if err != nil {
		summary := strings.TrimSpace(string(out))
		if len(summary) > 500 {
			summary = summary[:500]
		}
		return []types.Violation{{
			ID:       "dependency-audit/vulnerabilities",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("%s reported findings: %s", s.VulnTool, summary),
		}}
	}
	return nil
}

func findGoModFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if defaultSkipDirs[d.Name()] || strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "go.mod" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// isPseudoVersion reports whether v looks like a go pseudo-version
// (vX.Y.Z-yyyymmddhhmmss-abcdefabcdef).
func isPseudoVersion(v string) bool {
	if !semver.IsValid(v) {
		return false
	}
	parts := strings.Split(v, "-")
	if len(parts) < 3 {
		return false
	}
	stamp := parts[len(parts)-2]
	return len(stamp) == 14 && strings.Trim(stamp, "0123456789") == ""
}
