package sync

import "errors"

var (
	// Pending transaction with this hash is already stored. No sequence index is consumed.
	ErrAlreadyIngested = errors.New("transaction already ingested")

	// Engine got cancelled before it finished starting
	ErrStopped = errors.New("engine stopped")
)
