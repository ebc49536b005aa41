package scanner

import (
	"context"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// Scanner is the uniform contract every workspace analyzer implements.
//
// Scan may block on I/O (disk walks, subprocess calls, network for AI
// backends) and must be reentrant: two invocations with different contexts
// may overlap when the queue allows it. Business-level failures (finding
// violations) are reported inside the result, never as a returned error;
// a returned error means the scan itself could not execute.
type Scanner interface {
	// ID returns the short stable identifier, e.g. "license-headers".
	ID() string

	// Name returns the human-readable name.
	Name() string

	// Description explains what workspace property the scanner evaluates.
	Description() string

	// Category classifies the scanner's concern.
	Category() types.Category

	// Projects returns the project names the scanner applies to.
	// Nil means it applies to every project.
	Projects() []string

	// Scan evaluates the workspace (or the files scoped by the context)
	// and returns a result with Timestamp set by the scanner.
	Scan(ctx context.Context, sc types.ScanContext) (*types.ScanResult, error)
}

// Fixer is the optional fix capability. It is only invoked on violations
// the scanner itself marked AutoFixable.
type Fixer interface {
	Fix(ctx context.Context, sc types.ScanContext, violations []types.Violation) (*types.FixResult, error)
}
