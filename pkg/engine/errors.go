package engine

import (
	"errors"
	"fmt"
)

// Recoverable errors: the call fails, book state is untouched, the caller
// may retry with corrected input.
var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrOrderNotFound    = errors.New("order not found")
	ErrSelfTrade        = errors.New("order would self-trade")
	ErrMarketUnfillable = errors.New("market order cannot be fully filled")
)

// ErrEngineHalted is returned by every mutating call after an
// InvariantError halted the engine instance.
var ErrEngineHalted = errors.New("engine halted after invariant violation")

// InvariantError signals a violated engine post-condition (crossed book,
// lost quantity). It indicates a programming bug, never bad caller input,
// and halts the engine instance to avoid propagating a corrupted book.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated: %s: %s", e.Invariant, e.Detail)
}
