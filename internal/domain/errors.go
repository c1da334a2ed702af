package domain

import "errors"

// Domain errors surface to callers as 400 responses. Anything else that
// escapes a service is treated as an internal error and masked.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyActive    = errors.New("a run is already active")
	ErrNotActive        = errors.New("no run is active")
	ErrHasDependents    = errors.New("entity has dependents")
	ErrAmbiguousAddress = errors.New("ambiguous device address")
	ErrInvalidFormat    = errors.New("invalid format")
	// ErrRelayDelivery covers relay and transport failures on command send.
	// The command row is already persisted when it occurs, so it is a
	// business response, not an internal error.
	ErrRelayDelivery = errors.New("relay delivery failed")
)

// IsDomainError reports whether err belongs to the business-rule error
// taxonomy (mapped to HTTP 400) as opposed to an internal failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrHasDependents) ||
		errors.Is(err, ErrAmbiguousAddress) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrRelayDelivery)
}
