package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// staleDocAge is how far a doc may lag behind its package's newest source
// file before it is flagged.
const staleDocAge = 30 * 24 * time.Hour

// Completer is the model backend the scanner uses for summaries when one
// is available. Nil disables the AI step entirely.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DocFreshness compares documentation timestamps against the source files
// they describe. With a model backend attached it also produces a short
// assessment of which docs most need attention; without one it reports the
// heuristic findings alone.
type DocFreshness struct {
	completer Completer
}

// NewDocFreshness creates the doc freshness scanner. completer may be nil.
func NewDocFreshness(completer Completer) *DocFreshness {
	return &DocFreshness{completer: completer}
}

func (s *DocFreshness) ID() string   { return "doc-freshness" }
func (s *DocFreshness) Name() string { return "Doc Freshness" }

func (s *DocFreshness) Description() string {
	return "Flags README and docs files that lag far behind the code they describe"
}

func (s *DocFreshness) Category() types.Category { return types.CategoryDocumentation }
func (s *DocFreshness) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *DocFreshness) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	result := &types.ScanResult{
		Scanner: s.ID(),
		Metrics: map[string]float64{},
	}

	docs, err := collectFiles(sc, map[string]bool{".md": true, ".mdx": true})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	if len(docs) == 0 {
		result.Status = types.StatusSkipped
		result.Summary = "no documentation files in workspace"
		return finishResult(result, start), nil
	}

	stale := 0
	var staleNames []string
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lag, flagged := docLag(doc)
		if !flagged {
			continue
		}
		stale++
		staleNames = append(staleNames, relPath(sc.WorkspaceRoot, doc))
		result.Warnings = append(result.Warnings, types.Violation{
			ID:       "doc-freshness/stale",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("doc is %d days older than the newest sibling source file", int(lag.Hours()/24)),
			File:     relPath(sc.WorkspaceRoot, doc),
		})
	}

	result.Metrics["docs"] = float64(len(docs))
	result.Metrics["stale"] = float64(stale)
	fresh := len(docs) - stale
	result.Metrics["compliance"] = float64(fresh) / float64(len(docs)) * 100
	result.Status = statusFor(0, len(result.Warnings))
	result.Summary = fmt.Sprintf("%d/%d docs current", fresh, len(docs))

	// Optional model-backed triage of what to update first
	if s.completer != nil && stale > 0 {
		prompt := fmt.Sprintf(
			"These workspace docs lag behind their code: %s. In two sentences, suggest which to update first and why.",
			strings.Join(staleNames, ", "))
		if advice, err := s.completer.Complete(ctx, prompt); err == nil && advice != "" {
			result.Summary = result.Summary + " — " + strings.TrimSpace(advice)
		}
	}

	return finishResult(result, start), nil
}

// docLag returns how far the doc's mtime trails the newest source file in
// its directory, and whether that lag crosses the staleness threshold.
func docLag(doc string) (time.Duration, bool) {
	docInfo, err := os.Stat(doc)
	if err != nil {
		return 0, false
	}

	newest := time.Time{}
	entries, err := os.ReadDir(filepath.Dir(doc))
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	if newest.IsZero() {
		return 0, false
	}

	lag := newest.Sub(docInfo.ModTime())
	return lag, lag > staleDocAge
}
