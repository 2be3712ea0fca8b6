package world

import "errors"

var (
	// ErrStateCorruption marks a persisted world state that failed to load.
	// The store falls back to an empty state but never hides the loss.
	ErrStateCorruption = errors.New("world state corrupt")

	// ErrInvalidUpdate marks an update rejected before any mutation.
	ErrInvalidUpdate = errors.New("invalid world state update")
)
