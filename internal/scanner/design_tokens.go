package scanner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var designTokenExts = map[string]bool{
	".css": true, ".scss": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
}

// Raw values that should come from the design token palette instead.
var (
	rawHexColor = regexp.MustCompile(`(?i)#[0-9a-f]{3}(?:[0-9a-f]{3})?\b`)
	rawPixel    = regexp.MustCompile(`\b\d+px\b`)
	tokenRef    = regexp.MustCompile(`var\(--dcyfr-[a-z0-9-]+\)|tokens\.[A-Za-z0-9.]+`)
)

// DesignTokens measures how much styling goes through the shared design
// token palette versus raw literal values. The usage percentage feeds the
// health score directly via metrics.usage.
type DesignTokens struct{}

// NewDesignTokens creates the design token usage scanner.
func NewDesignTokens() *DesignTokens { return &DesignTokens{} }

func (s *DesignTokens) ID() string   { return "design-tokens" }
func (s *DesignTokens) Name() string { return "Design Tokens" }

func (s *DesignTokens) Description() string {
	return "Flags raw color and spacing literals that bypass the design token palette"
}

func (s *DesignTokens) Category() types.Category { return types.CategoryCompliance }
func (s *DesignTokens) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *DesignTokens) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	files, err := collectFiles(sc, designTokenExts)
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	result := &types.ScanResult{
		Scanner: s.ID(),
		Metrics: map[string]float64{},
	}

	tokenUses, rawUses := 0, 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, r, warns := s.scanFile(sc.WorkspaceRoot, f)
		tokenUses += t
		rawUses += r
		result.Warnings = append(result.Warnings, warns...)
	}

	total := tokenUses + rawUses
	usage := 100.0
	if total > 0 {
		usage = float64(tokenUses) / float64(total) * 100
	}
	result.Metrics["usage"] = usage
	result.Metrics["token_refs"] = float64(tokenUses)
	result.Metrics["raw_literals"] = float64(rawUses)
	result.Status = statusFor(0, len(result.Warnings))
	result.Summary = fmt.Sprintf("%.1f%% token usage (%d token refs, %d raw literals)", usage, tokenUses, rawUses)
	return finishResult(result, start), nil
}

// scanFile counts token references and raw literals, flagging raw literal
// lines as warnings.
func (s *DesignTokens) scanFile(root, path string) (tokens, raws int, warns []types.Violation) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		tokens += len(tokenRef.FindAllString(line, -1))
		rawHits := len(rawHexColor.FindAllString(line, -1)) + len(rawPixel.FindAllString(line, -1))
		if rawHits == 0 {
			continue
		}
		raws += rawHits
		warns = append(warns, types.Violation{
			ID:       "design-tokens/raw-literal",
			Severity: types.SeverityWarning,
			Message:  "raw style literal; use a design token",
			File:     relPath(root, path),
			Line:     lineNo,
		})
	}
	return tokens, raws, warns
}
