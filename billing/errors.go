package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned by the store when a conditional
	// counter update loses the race against another scheduled run. The losing
	// run skips the invoice; the winner already sent this cycle's notice.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateInvoice is returned when a performance-fee invoice already
	// exists for the user and tax year. Expected under overlapping cron runs;
	// the unique constraint, not run frequency, is what prevents
	// double-invoicing.
	ErrDuplicateInvoice = errors.New("performance-fee invoice already exists")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")
)

// SavingsLookupError wraps a failure from the savings collaborator so cron
// wrappers can log it as an error entry rather than an eligibility skip.
type SavingsLookupError struct {
	UserID string
	Err    error
}

func (e *SavingsLookupError) Error() string {
	return fmt.Sprintf("savings lookup for user %s: %v", e.UserID, e.Err)
}

func (e *SavingsLookupError) Unwrap() error { return e.Err }
