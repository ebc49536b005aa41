package scanner

import "fmt"

// RegisterBuiltins installs the standard scanner set into a registry.
// completer may be nil; the doc-freshness scanner then runs heuristics only.
func RegisterBuiltins(r *Registry, completer Completer) error {
	builtins := []Scanner{
		NewLicenseHeaders(),
		NewDesignTokens(),
		NewSecretPatterns(),
		NewDependencyAudit(),
		NewTodoTracker(),
		NewDocFreshness(completer),
	}
	for _, s := range builtins {
		if err := r.Register(s); err != nil {
			return fmt.Errorf("registering builtin scanners: %w", err)
		}
	}
	return nil
}
