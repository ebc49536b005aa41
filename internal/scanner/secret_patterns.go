package scanner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// secretPattern pairs a finding id with the regex that detects it.
type secretPattern struct {
	id      string
	message string
	re      *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"secret-patterns/aws-key", "possible AWS access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"secret-patterns/private-key", "private key material committed to the workspace", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{"secret-patterns/generic-token", "hardcoded credential assignment", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token|password)\s*[:=]\s*["'][A-Za-z0-9+/_-]{16,}["']`)},
	{"secret-patterns/anthropic-key", "possible Anthropic API key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
}

var secretScanExts = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".sh": true, ".env": true, ".yaml": true, ".yml": true,
	".json": true, ".toml": true,
}

// SecretPatterns scans text files for credential material. Findings are
// always error severity and never auto-fixable: removing a secret requires
// rotating it, which no tool should do silently.
type SecretPatterns struct{}

// NewSecretPatterns creates the secret detection scanner.
func NewSecretPatterns() *SecretPatterns { return &SecretPatterns{} }

func (s *SecretPatterns) ID() string   { return "secret-patterns" }
func (s *SecretPatterns) Name() string { return "Secret Patterns" }

func (s *SecretPatterns) Description() string {
	return "Detects API keys, private keys, and hardcoded credentials in the workspace"
}

func (s *SecretPatterns) Category() types.Category { return types.CategorySecurity }
func (s *SecretPatterns) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *SecretPatterns) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	files, err := collectFiles(sc, secretScanExts)
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
		result.Violations = append(result.Violations, s.scanFile(sc.WorkspaceRoot, f)...)
	}

	result.Metrics["files_scanned"] = float64(len(files))
	result.Metrics["findings"] = float64(len(result.Violations))
	result.Status = statusFor(len(result.Violations), 0)
	if len(result.Violations) == 0 {
		result.Summary = fmt.Sprintf("no secrets detected in %d files", len(files))
	} else {
		result.Summary = fmt.Sprintf("%d possible secret(s) in %d files", len(result.Violations), len(files))
	}
	return finishResult(result, start), nil
}

func (s *SecretPatterns) scanFile(root, path string) []types.Violation {
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
		line := scanner.Text()
		// Suppression comment for known-safe fixtures
		if strings.Contains(line, "dcyfr:allow-secret") {
			continue
		}
		for _, p := range secretPatterns {
			if loc := p.re.FindStringIndex(line); loc != nil {
				found = append(found, types.Violation{
					ID:       p.id,
					Severity: types.SeverityError,
					Message:  p.message,
					File:     relPath(root, path),
					Line:     lineNo,
					Column:   loc[0] + 1,
				})
			}
		}
	}
	return found
}
