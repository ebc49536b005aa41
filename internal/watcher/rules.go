package watcher

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Rule maps a workspace-relative path pattern to the scanners that should
// re-run when a matching file changes. Multiple rules may match the same
// path; each adds it to the batch for its scanner set, so rules with the
// same scanner set share one batch.
type Rule struct {
	Pattern  *regexp.Regexp
	Scanners []string
	Debounce time.Duration // zero means the watcher default
}

// batchKey derives the rule's batch identity: the sorted concatenation of
// its target scanners. Two rules targeting {A,B} and {A} share no key, so
// a file hit by both opens two batches. Intentional asymmetry; keep test
// coverage if this ever changes.
func (r *Rule) batchKey() string {
	sorted := make([]string, len(r.Scanners))
	copy(sorted, r.Scanners)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// DefaultRules maps the built-in scanners onto the file types that affect
// them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:  regexp.MustCompile(`\.(go|ts|tsx|js|jsx)$`),
			Scanners: []string{"license-headers", "todo-tracker"},
		},
		{
			Pattern:  regexp.MustCompile(`\.(css|scss|ts|tsx|js|jsx)$`),
			Scanners: []string{"design-tokens"},
		},
		{
			Pattern:  regexp.MustCompile(`(^|/)go\.(mod|sum)$|(^|/)package(-lock)?\.json$`),
			Scanners: []string{"dependency-audit"},
		},
		{
			Pattern:  regexp.MustCompile(`\.(env|yaml|yml|json|toml|go|ts|tsx|js|jsx|py|sh)$`),
			Scanners: []string{"secret-patterns"},
		},
		{
			Pattern:  regexp.MustCompile(`\.(md|mdx)$`),
			Scanners: []string{"doc-freshness"},
		},
	}
}
