package storage

import "errors"

// Sentinel errors returned by repository operations. Callers detect them
// with errors.Is and map them to their own failure taxonomy.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an operation loses a race against
	// concurrent state: over-allocation, double-unmatch, stale confirms.
	ErrConflict = errors.New("conflicting ledger state")

	// ErrInvalid is returned for requests that can never succeed against
	// the current ledger, e.g. allocating past a fee's remaining amount
	// without permitting overpayment.
	ErrInvalid = errors.New("invalid request")
)
