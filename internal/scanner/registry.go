package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// ErrDuplicateScanner is returned when registering an id twice.
var ErrDuplicateScanner = errors.New("duplicate scanner id")

// ErrUnknownScanner is returned when dispatching to an unregistered id.
var ErrUnknownScanner = errors.New("unknown scanner")

// Registry holds scanner definitions and dispatches invocations by id.
// Enumeration follows registration order.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
	order    []string
}

// NewRegistry creates an empty scanner registry.
func NewRegistry() *Registry {
	return &Registry{
		scanners: make(map[string]Scanner),
	}
}

// Register adds a scanner. Registration fails if the id already exists.
func (r *Registry) Register(s Scanner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	if id == "" {
		return fmt.Errorf("scanner id is required")
	}
	if _, exists := r.scanners[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateScanner, id)
	}

	r.scanners[id] = s
	r.order = append(r.order, id)
	return nil
}

// Get returns the scanner registered under id.
func (r *Registry) Get(id string) (Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scanners[id]
	return s, ok
}

// List returns all scanners in registration order.
func (r *Registry) List() []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scanner, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.scanners[id])
	}
	return out
}

// ListByCategory returns scanners in the given category, registration order.
func (r *Registry) ListByCategory(c types.Category) []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Scanner
	for _, id := range r.order {
		if r.scanners[id].Category() == c {
			out = append(out, r.scanners[id])
		}
	}
	return out
}

// ListForProject returns scanners whose project set is absent or contains
// the given project.
func (r *Registry) ListForProject(project string) []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Scanner
	for _, id := range r.order {
		if scannerAppliesTo(r.scanners[id], project) {
			out = append(out, r.scanners[id])
		}
	}
	return out
}

// IDs returns all registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Run dispatches one scan by id. An unknown id fails with ErrUnknownScanner
// and the message names the currently registered ids.
func (r *Registry) Run(ctx context.Context, id string, sc types.ScanContext) (*types.ScanResult, error) {
	s, ok := r.Get(id)
	if !ok {
		known := r.IDs()
		sort.Strings(known)
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownScanner, id, strings.Join(known, ", "))
	}
	return s.Scan(ctx, sc)
}

// RunAll runs every applicable scanner in registration order, filtered by
// sc.Project when present. Panics and errors are caught per scanner and
// converted into an error-status result; they never propagate. Callers that
// need isolation between scanners schedule through the queue instead.
func (r *Registry) RunAll(ctx context.Context, sc types.ScanContext) []*types.ScanResult {
	var applicable []Scanner
	if sc.Project != "" {
		applicable = r.ListForProject(sc.Project)
	} else {
		applicable = r.List()
	}

	results := make([]*types.ScanResult, 0, len(applicable))
	for _, s := range applicable {
		results = append(results, runGuarded(ctx, s, sc))
	}
	return results
}

// Fix invokes the scanner's fix capability on the auto-fixable subset of
// the given violations. Scanners without a fix capability fail the call.
func (r *Registry) Fix(ctx context.Context, id string, sc types.ScanContext, violations []types.Violation) (*types.FixResult, error) {
	s, ok := r.Get(id)
	if !ok {
		known := r.IDs()
		sort.Strings(known)
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownScanner, id, strings.Join(known, ", "))
	}

	fixer, ok := s.(Fixer)
	if !ok {
		return nil, fmt.Errorf("scanner %q has no fix capability", id)
	}

	var fixable []types.Violation
	for _, v := range violations {
		if v.AutoFixable {
			fixable = append(fixable, v)
		}
	}

	return fixer.Fix(ctx, sc, fixable)
}

// runGuarded executes one scan and converts any panic or returned error
// into an error-status result.
func runGuarded(ctx context.Context, s Scanner, sc types.ScanContext) (result *types.ScanResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = errorResult(s.ID(), start, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := s.Scan(ctx, sc)
	if err != nil {
		return errorResult(s.ID(), start, err.Error())
	}
	if result == nil {
		return errorResult(s.ID(), start, "scanner returned no result")
	}
	return result
}

func errorResult(id string, start time.Time, summary string) *types.ScanResult {
	return &types.ScanResult{
		Scanner:    id,
		Status:     types.StatusError,
		Violations: []types.Violation{},
		Warnings:   []types.Violation{},
		DurationMS: time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
		Summary:    summary,
	}
}

func scannerAppliesTo(s Scanner, project string) bool {
	projects := s.Projects()
	if len(projects) == 0 {
		return true
	}
	for _, p := range projects {
		if p == project {
			return true
		}
	}
	return false
}
