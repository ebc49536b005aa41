package scanner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// defaultLicenseMarker is the phrase every source file's header comment
// must contain. Overridable per invocation via Options["marker"].
const defaultLicenseMarker = "SPDX-License-Identifier:"

// licenseHeaderExts are the source file types the scanner inspects.
var licenseHeaderExts = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
}

// LicenseHeaders verifies that every source file opens with a license
// header. Missing headers are auto-fixable: Fix prepends the configured
// header comment.
type LicenseHeaders struct {
	// Header is the comment block prepended by Fix.
	Header string
}

// NewLicenseHeaders creates the scanner with the workspace default header.
func NewLicenseHeaders() *LicenseHeaders {
	return &LicenseHeaders{
		Header: "// SPDX-License-Identifier: Apache-2.0\n",
	}
}

func (s *LicenseHeaders) ID() string   { return "license-headers" }
func (s *LicenseHeaders) Name() string { return "License Headers" }

func (s *LicenseHeaders) Description() string {
	return "Verifies every source file carries a license header comment"
}

func (s *LicenseHeaders) Category() types.Category { return types.CategoryCompliance }
func (s *LicenseHeaders) Projects() []string       { return nil }

// Scan implements Scanner.
func (s *LicenseHeaders) Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error) {
	start := timeNow()

	marker := defaultLicenseMarker
	if m, ok := sc.Options["marker"].(string); ok && m != "" {
		marker = m
	}

	files, err := collectFiles(sc, licenseHeaderExts)
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	result := &types.ScanResult{
		Scanner: s.ID(),
		Metrics: map[string]float64{},
	}

	checked := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := hasHeader(f, marker)
		if err != nil {
			result.Warnings = append(result.Warnings, types.Violation{
				ID:       "license-headers/unreadable",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("could not read file: %v", err),
				File:     relPath(sc.WorkspaceRoot, f),
			})
			continue
		}
		checked++
		if !ok {
			result.Violations = append(result.Violations, types.Violation{
				ID:          "license-headers/missing",
				Severity:    types.SeverityError,
				Message:     fmt.Sprintf("missing license header (expected %q in first lines)", marker),
				File:        relPath(sc.WorkspaceRoot, f),
				Line:        1,
				Fix:         "prepend the workspace license header",
				AutoFixable: true,
			})
		}
	}

	compliant := checked - len(result.Violations)
	if checked > 0 {
		result.Metrics["compliance"] = float64(compliant) / float64(checked) * 100
	}
	result.Metrics["files_checked"] = float64(checked)
	result.Status = statusFor(len(result.Violations), len(result.Warnings))
	result.Summary = fmt.Sprintf("%d/%d files carry a license header", compliant, checked)
	return finishResult(result, start), nil
}

// Fix implements Fixer by prepending the header to each flagged file.
func (s *LicenseHeaders) Fix(ctx context.Context, sc types.ScanContext, violations []types.Violation) (*types.FixResult, error) {
	result := &types.FixResult{
		Scanner: s.ID(),
		DryRun:  sc.DryRun,
	}

	for _, v := range violations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := v.File
		if !strings.HasPrefix(path, "/") {
			path = sc.WorkspaceRoot + "/" + path
		}
		if sc.DryRun {
			result.Fixed = append(result.Fixed, v)
			continue
		}
		if err := prependHeader(path, s.Header); err != nil {
			result.Unfixed = append(result.Unfixed, v)
			continue
		}
		result.Fixed = append(result.Fixed, v)
	}

	result.Summary = fmt.Sprintf("added headers to %d file(s), %d failed", len(result.Fixed), len(result.Unfixed))
	result.Timestamp = timeNow()
	return result, nil
}

// hasHeader checks whether the marker appears within the first kilobyte.
func hasHeader(path, marker string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return false, nil // empty file has no header to check
	}
	return strings.Contains(string(buf[:n]), marker), nil
}

func prependHeader(path, header string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
