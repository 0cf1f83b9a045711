package listing

import (
	"errors"
	"fmt"
)

// Sentinel errors for the lifecycle engine. Handlers translate these to
// HTTP codes; nothing downstream swallows them.
var (
	// ErrNotFound: no listing with the given id.
	ErrNotFound = errors.New("listing not found")

	// ErrConflict: a lost optimistic-concurrency race. Expected under
	// normal concurrent operation; callers re-read and retry.
	ErrConflict = errors.New("listing was modified concurrently")

	// ErrInvalidState: operation attempted from the wrong lifecycle state.
	ErrInvalidState = errors.New("listing is not in the required state")

	// ErrExpiredAtCreation: food older than the 4-hour limit when listed.
	ErrExpiredAtCreation = errors.New("food exceeds the 4-hour age limit")

	// ErrUnsafeFood: the vision oracle ruled the food unsafe. The listing
	// is persisted terminally rejected and can never be claimed.
	ErrUnsafeFood = errors.New("food ruled unsafe by vision check")

	// ErrOtpMismatch: wrong pickup code; the listing stays accepted.
	ErrOtpMismatch = errors.New("pickup code does not match")

	// ErrOtpLocked: too many consecutive wrong codes; attempts are
	// refused until the cooldown passes.
	ErrOtpLocked = errors.New("pickup verification locked, try again later")

	// ErrOracleUnavailable: an external oracle (vision or road network)
	// could not be reached. A failed safety check blocks creation, it
	// never defaults to safe.
	ErrOracleUnavailable = errors.New("external oracle unavailable")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
