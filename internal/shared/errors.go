package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller's dealer does not own the entity or
	// the caller's role lacks the capability.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a state transition not permitted from the current
	// state, a cardinality limit, or an amount that would go negative.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientInventory is the ledger-debit specialisation of ErrConflict.
	ErrInsufficientInventory = fmt.Errorf("insufficient inventory: %w", ErrConflict)
)

// Validationf wraps ErrValidation with a field-level message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Conflictf wraps ErrConflict with a message naming the required state.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}
