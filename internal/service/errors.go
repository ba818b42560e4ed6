package service

import "errors"

var (
	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID = errors.New("invalid passenger id")

	// ErrInvalidSpawnScope is returned when a spawn request names neither
	// a depot nor a route, or both.
	ErrInvalidSpawnScope = errors.New("spawn request must name exactly one of depot or route")

	// ErrInvalidTimeWindow is returned when the spawn window is not positive.
	ErrInvalidTimeWindow = errors.New("invalid time window")

	// ErrInvalidLocation is returned when query coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRadius is returned when a near-location radius is not positive.
	ErrInvalidRadius = errors.New("invalid radius")

	// ErrInvalidStatus is returned when a status filter is not a known status.
	ErrInvalidStatus = errors.New("invalid passenger status")

	// ErrSpawnWindowLocked is returned when another scheduler holds the
	// spawn lock for the same scope and window.
	ErrSpawnWindowLocked = errors.New("spawn window already in progress")
)
