package redis

import (
	"context"
	"time"
)

// GeoStoreInterface defines the interface for the WAITING-passenger geo index.
type GeoStoreInterface interface {
	AddWaiting(ctx context.Context, passengerID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]PassengerLocation, error)
	Remove(ctx context.Context, passengerIDs ...string) error
}

// LockStoreInterface defines the interface for spawn-window locking.
type LockStoreInterface interface {
	AcquireSpawnLock(ctx context.Context, scopeID string, window time.Time, ttl time.Duration) (bool, error)
	ReleaseSpawnLock(ctx context.Context, scopeID string, window time.Time) error
}

// Ensure concrete types implement interfaces.
var (
	_ GeoStoreInterface  = (*GeoStore)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
)
