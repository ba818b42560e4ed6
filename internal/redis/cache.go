package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"transitdemand/internal/domain"
)

// CacheStore caches resolved spawn configs in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SpawnConfigCacheTTL bounds how long a stale merged config can survive a
// config upsert that only invalidated part of its scope.
const SpawnConfigCacheTTL = 60 * time.Second

const spawnConfigCachePrefix = "cache:spawnconfig:"

// cachedSpawnConfig is the wire form of a resolved config. Map keys become
// strings so the JSON round-trips cleanly.
type cachedSpawnConfig struct {
	ID             string             `json:"id"`
	RouteID        string             `json:"route_id,omitempty"`
	BaseRate       *float64           `json:"base_rate,omitempty"`
	HourlyRates    map[string]float64 `json:"hourly_rates"`
	DayMultipliers map[string]float64 `json:"day_multipliers"`
	TTLSeconds     int64              `json:"ttl_seconds"`
}

// GetSpawnConfig retrieves a resolved config from cache. A miss returns
// (nil, nil).
func (s *CacheStore) GetSpawnConfig(ctx context.Context, routeID string) (*domain.SpawnConfig, error) {
	key := spawnConfigCacheKey(routeID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached cachedSpawnConfig
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	cfg := &domain.SpawnConfig{
		ID:             cached.ID,
		RouteID:        cached.RouteID,
		BaseRate:       cached.BaseRate,
		HourlyRates:    make(map[int]float64, len(cached.HourlyRates)),
		DayMultipliers: make(map[time.Weekday]float64, len(cached.DayMultipliers)),
		TTL:            time.Duration(cached.TTLSeconds) * time.Second,
	}
	for k, v := range cached.HourlyRates {
		h, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		cfg.HourlyRates[h] = v
	}
	for k, v := range cached.DayMultipliers {
		d, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		cfg.DayMultipliers[time.Weekday(d)] = v
	}
	return cfg, nil
}

// SetSpawnConfig stores a resolved config in cache.
func (s *CacheStore) SetSpawnConfig(ctx context.Context, routeID string, cfg *domain.SpawnConfig) error {
	cached := cachedSpawnConfig{
		ID:             cfg.ID,
		RouteID:        cfg.RouteID,
		BaseRate:       cfg.BaseRate,
		HourlyRates:    make(map[string]float64, len(cfg.HourlyRates)),
		DayMultipliers: make(map[string]float64, len(cfg.DayMultipliers)),
		TTLSeconds:     int64(cfg.TTL / time.Second),
	}
	for h, v := range cfg.HourlyRates {
		cached.HourlyRates[strconv.Itoa(h)] = v
	}
	for d, v := range cfg.DayMultipliers {
		cached.DayMultipliers[strconv.Itoa(int(d))] = v
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, spawnConfigCacheKey(routeID), data, SpawnConfigCacheTTL).Err()
}

// InvalidateSpawnConfig removes a resolved config from cache.
func (s *CacheStore) InvalidateSpawnConfig(ctx context.Context, routeID string) error {
	return s.client.Del(ctx, spawnConfigCacheKey(routeID)).Err()
}

func spawnConfigCacheKey(routeID string) string {
	if routeID == "" {
		return spawnConfigCachePrefix + "global"
	}
	return spawnConfigCachePrefix + routeID
}
