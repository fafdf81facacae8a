// Package errors defines the sentinel errors shared by the contract
// workflow, the temporal record engine and the repository.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")
	// ErrInvalidState rejects an operation that is illegal for the record's current status.
	ErrInvalidState = fmt.Errorf("invalid state")
	// ErrOverlap rejects an activation that would give an employee two
	// in-force contracts on the same day.
	ErrOverlap      = fmt.Errorf("overlapping contract")
	ErrUnauthorized = fmt.Errorf("unauthorized approver")
	ErrNoApprover   = fmt.Errorf("no approver available")
	// ErrConflict signals a lost optimistic-concurrency race on a temporal
	// record. The enclosing transaction is safe to retry.
	ErrConflict         = fmt.Errorf("concurrent modification")
	ErrMissingReference = fmt.Errorf("reference data missing")
	ErrNeedsReview      = fmt.Errorf("needs manual review")
)

// IsRejection reports whether err is a caller-visible rejection rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInvalidInput, ErrInvalidState, ErrOverlap, ErrUnauthorized, ErrNoApprover} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
