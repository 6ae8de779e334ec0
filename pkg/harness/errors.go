package harness

import "fmt"

// BuildError means a scenario was rejected before any side effects: missing
// duration, missing topology, or a capability mismatch.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return fmt.Sprintf("harness: build rejected: %s", e.Reason) }

func buildErrorf(format string, args ...any) error {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}
