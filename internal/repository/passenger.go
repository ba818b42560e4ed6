package repository

import (
	"context"
	"time"

	"transitdemand/internal/domain"
)

// PassengerFilter narrows passenger queries. Zero values mean "no filter".
type PassengerFilter struct {
	RouteID string
	DepotID string
	Status  domain.PassengerStatus
}

// PassengerRepository defines the persistence operations for passengers.
type PassengerRepository interface {
	// CreateBatch persists a spawn batch of new passengers.
	CreateBatch(ctx context.Context, passengers []*domain.Passenger) error

	// GetByID retrieves a passenger by ID.
	GetByID(ctx context.Context, id string) (*domain.Passenger, error)

	// List retrieves passengers matching the filter.
	List(ctx context.Context, filter PassengerFilter) ([]*domain.Passenger, error)

	// ClaimForBoarding atomically transitions a WAITING passenger to
	// ONBOARD. The update is a compare-and-set on status: if the passenger
	// is not WAITING at the moment of the update it returns
	// ErrAlreadyClaimed, or ErrNotFound for an unknown id.
	ClaimForBoarding(ctx context.Context, id string, at time.Time) (*domain.Passenger, error)

	// CompleteAlight atomically transitions an ONBOARD passenger to
	// COMPLETED, returning ErrNotOnboard or ErrNotFound otherwise.
	CompleteAlight(ctx context.Context, id string, at time.Time) (*domain.Passenger, error)

	// DeleteExpired hard-deletes every WAITING passenger whose expiry is
	// before now and returns the removed ids. Passengers that ever reached
	// ONBOARD are never deleted.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)

	// CountByStatus returns passenger counts keyed by status, optionally
	// scoped to a route.
	CountByStatus(ctx context.Context, routeID string) (map[domain.PassengerStatus]int, error)
}

// SpawnConfigRepository defines the persistence operations for spawn configs.
type SpawnConfigRepository interface {
	// GetByScope retrieves the config for a route, or the global config
	// when routeID is empty.
	GetByScope(ctx context.Context, routeID string) (*domain.SpawnConfig, error)

	// Upsert creates or replaces the config for its scope.
	Upsert(ctx context.Context, cfg *domain.SpawnConfig) error
}
