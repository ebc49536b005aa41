package scanner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var todoMarker = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b[:\s]`)

var todoExts = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".css": true, ".scss": true,
}

// todoWarnThreshold is the marker count above which the scan degrades
// from pass to warn.
const todoWarnThreshold = 25

// TodoTracker counts deferred-work markers across the workspace. Markers
// are informational individually; the volume is what the health score
// reacts to.
type TodoTracker struct{}

// NewTodoTracker creates the TODO tracking scanner.
func NewTodoTracker() *TodoTracker { return &TodoTracker{} }

func (s *TodoTracker) ID() string   { return "todo-tracker" }
func (s *TodoTracker) Name() string { return "TODO Tracker" }

func (s *TodoTracker) Description() string {
	return "Tracks TODO/FIXME/HACK markers to keep deferred work visible"
}

func (s *TodoTracker) Category() types.Category { return types.CategoryCleanup }
func (s *TodoTracker) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *TodoTracker) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	files, err := collectFiles(sc, todoExts)
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	result := &types.ScanResult{
		Scanner: s.ID(),
		Metrics: map[string]float64{},
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, s.scanFile(sc.WorkspaceRoot, f)...)
	}

	count := len(result.Warnings)
	result.Metrics["markers"] = float64(count)
	result.Metrics["files_scanned"] = float64(len(files))
	if count > todoWarnThreshold {
		result.Status = types.StatusWarn
	} else {
		// A handful of markers is healthy; only volume degrades the score
		result.Status = types.StatusPass
		result.Warnings = result.Warnings[:0]
	}
	result.Summary = fmt.Sprintf("%d deferred-work marker(s) in %d files", count, len(files))
	return finishResult(result, start), nil
}

func (s *TodoTracker) scanFile(root, path string) []types.Violation {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var found []types.Violation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if m := todoMarker.FindString(scanner.Text()); m != "" {
			found = append(found, types.Violation{
				ID:       "todo-tracker/marker",
				Severity: types.SeverityInfo,
				Message:  "deferred-work marker",
				File:     relPath(root, path),
				Line:     lineNo,
			})
		}
	}
	return found
}
