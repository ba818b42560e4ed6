package domain

import "time"

// PassengerStatus represents the current lifecycle state of a passenger.
type PassengerStatus string

const (
	PassengerStatusWaiting   PassengerStatus = "WAITING"
	PassengerStatusOnboard   PassengerStatus = "ONBOARD"
	PassengerStatusCompleted PassengerStatus = "COMPLETED"
)

// Valid reports whether s is one of the known passenger statuses.
func (s PassengerStatus) Valid() bool {
	switch s {
	case PassengerStatusWaiting, PassengerStatusOnboard, PassengerStatusCompleted:
		return true
	}
	return false
}

// Direction represents the travel direction of a passenger relative to the depot.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Passenger represents a synthetic rider spawned by the demand engine.
//
// A passenger is created WAITING, moves to ONBOARD when a vehicle claims it,
// and to COMPLETED when it alights. BoardedAt is zero until the passenger is
// claimed; AlightedAt is zero until the journey completes. DepotID is empty
// for route-only spawns.
type Passenger struct {
	ID             string
	DepotID        string
	RouteID        string
	OriginLat      float64
	OriginLng      float64
	DestinationLat float64
	DestinationLng float64
	Direction      Direction
	Status         PassengerStatus
	SpawnedAt      time.Time
	ExpiresAt      time.Time
	BoardedAt      time.Time
	AlightedAt     time.Time
}
