package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// timeNow is swappable in tests.
var timeNow = time.Now

// defaultSkipDirs are directory names never descended into during a full
// workspace walk. The daemon state directory is included so scanners never
// read their own bookkeeping.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".dcyfr":       true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	".next":        true,
	".turbo":       true,
	".cache":       true,
}

// collectFiles returns the files a scan should examine. When the context is
// scoped to specific files, those are returned (filtered by extension);
// otherwise the workspace is walked. Extensions are matched with the
// leading dot (an empty exts map matches everything).
func collectFiles(sc types.ScanContext, exts map[string]bool) ([]string, error) {
	matches := func(path string) bool {
		if len(exts) == 0 {
			return true
		}
		return exts[strings.ToLower(filepath.Ext(path))]
	}

	if len(sc.Files) > 0 {
		var out []string
		for _, f := range sc.Files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(sc.WorkspaceRoot, f)
			}
			if matches(f) {
				out = append(out, f)
			}
		}
		return out, nil
	}

	var out []string
	err := filepath.WalkDir(sc.WorkspaceRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			return nil
		}
		if d.IsDir() {
			if defaultSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if matches(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// relPath makes a path workspace-relative for reporting. Falls back to the
// input when the path is outside the workspace.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// statusFor derives the result status from the finding counts.
func statusFor(violations, warnings int) types.ScanStatus {
	switch {
	case violations > 0:
		return types.StatusFail
	case warnings > 0:
		return types.StatusWarn
	default:
		return types.StatusPass
	}
}

// finishResult fills the bookkeeping fields every scanner sets the same way.
func finishResult(r *types.ScanResult, start time.Time) *types.ScanResult {
	if r.Violations == nil {
		r.Violations = []types.Violation{}
	}
	if r.Warnings == nil {
		r.Warnings = []types.Violation{}
	}
	r.DurationMS = time.Since(start).Milliseconds()
	r.Timestamp = time.Now()
	return r
}
