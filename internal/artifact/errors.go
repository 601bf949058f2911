package artifact

import "errors"

// Sentinel errors for the store and engines. Callers match with errors.Is;
// call sites wrap these with context via fmt.Errorf("%w: ...").
var (
	// ErrValidation marks a payload that violates a variant invariant.
	// Always recoverable; no partial write occurs.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced artifact id that does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidTransition marks a decision state-machine transition that is
	// not permitted from the current status.
	ErrInvalidTransition = errors.New("invalid decision transition")

	// ErrPermission marks deletion of a sensitive artifact without force.
	ErrPermission = errors.New("permission denied")

	// ErrCycle marks a supersession that would create, or a traversal that
	// detected, a cycle.
	ErrCycle = errors.New("supersession cycle")

	// ErrTypeMismatch marks supersession across incompatible artifact types.
	ErrTypeMismatch = errors.New("artifact type mismatch")
)
