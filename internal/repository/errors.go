package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyClaimed is returned when a boarding claim targets a
	// passenger that is no longer WAITING. This is an expected race
	// outcome: the caller should move on to the next candidate.
	ErrAlreadyClaimed = errors.New("passenger already claimed")

	// ErrNotOnboard is returned when an alight targets a passenger that is
	// not currently ONBOARD.
	ErrNotOnboard = errors.New("passenger not onboard")
)
