package model

import "errors"

// Store-level sentinel errors shared by every ledger implementation.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSupplyExhausted is returned when the global supply has nothing left to reserve.
	ErrSupplyExhausted = errors.New("global supply exhausted")

	// ErrStaleTick is returned when a tick is not strictly newer than the latest stored tick.
	ErrStaleTick = errors.New("tick timestamp not newer than latest tick")
)
