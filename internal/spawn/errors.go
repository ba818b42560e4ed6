package spawn

import "errors"

var (
	// ErrMissingBaseRate is returned when no base rate is configured for
	// the spawn scope. There is no sane default, so the window is skipped.
	ErrMissingBaseRate = errors.New("spawn config missing base rate")

	// ErrNegativeMultiplier is returned when a configured rate or
	// multiplier is negative.
	ErrNegativeMultiplier = errors.New("spawn config multiplier is negative")
)
