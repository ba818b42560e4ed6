package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const waitingGeoKey = "passengers:waiting:locations"

// PassengerLocation represents a WAITING passenger's origin position.
type PassengerLocation struct {
	PassengerID string
	Lat         float64
	Lng         float64
}

// GeoStore maintains a geo index of WAITING passenger origins in Redis. The
// index is a pre-filter for near-location queries; membership is maintained
// on insert, claim and expiry, and readers re-verify against the repository.
type GeoStore struct {
	client *redis.Client
}

// NewGeoStore creates a new GeoStore.
func NewGeoStore(client *redis.Client) *GeoStore {
	return &GeoStore{client: client}
}

// AddWaiting indexes a passenger's origin using GEOADD.
func (s *GeoStore) AddWaiting(ctx context.Context, passengerID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, waitingGeoKey, &redis.GeoLocation{
		Name:      passengerID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearby returns indexed passengers within radiusM meters, nearest first.
func (s *GeoStore) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]PassengerLocation, error) {
	results, err := s.client.GeoRadius(ctx, waitingGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusM,
		Unit:      "m",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]PassengerLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, PassengerLocation{
			PassengerID: r.Name,
			Lat:         r.Latitude,
			Lng:         r.Longitude,
		})
	}

	return locations, nil
}

// Remove drops a passenger from the geo index after a claim or expiry.
func (s *GeoStore) Remove(ctx context.Context, passengerIDs ...string) error {
	if len(passengerIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(passengerIDs))
	for i, id := range passengerIDs {
		members[i] = id
	}
	return s.client.ZRem(ctx, waitingGeoKey, members...).Err()
}
