package spawn

import (
	"context"
	"errors"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/repository"
)

// ConfigCache caches resolved spawn configs. A nil cache disables caching.
type ConfigCache interface {
	GetSpawnConfig(ctx context.Context, routeID string) (*domain.SpawnConfig, error)
	SetSpawnConfig(ctx context.Context, routeID string, cfg *domain.SpawnConfig) error
	InvalidateSpawnConfig(ctx context.Context, routeID string) error
}

// Resolver loads and validates the spawn config for a route, merging the
// per-route override over the global config.
type Resolver struct {
	repo       repository.SpawnConfigRepository
	cache      ConfigCache
	defaultTTL time.Duration
}

// NewResolver creates a Resolver. defaultTTL applies when no scope sets a TTL.
func NewResolver(repo repository.SpawnConfigRepository, cache ConfigCache, defaultTTL time.Duration) *Resolver {
	return &Resolver{
		repo:       repo,
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Resolve returns the merged, validated spawn config for routeID. An empty
// routeID resolves the global config alone.
func (r *Resolver) Resolve(ctx context.Context, routeID string) (*domain.SpawnConfig, error) {
	if r.cache != nil {
		if cached, err := r.cache.GetSpawnConfig(ctx, routeID); err == nil && cached != nil {
			return cached, nil
		}
	}

	global, err := r.load(ctx, "")
	if err != nil {
		return nil, err
	}

	var route *domain.SpawnConfig
	if routeID != "" {
		route, err = r.load(ctx, routeID)
		if err != nil {
			return nil, err
		}
	}

	if global == nil && route == nil {
		return nil, ErrMissingBaseRate
	}
	if global == nil {
		global = &domain.SpawnConfig{}
	}

	merged := global.Merge(route)
	if merged.TTL <= 0 {
		merged.TTL = r.defaultTTL
	}

	if err := Validate(merged); err != nil {
		return nil, err
	}

	if r.cache != nil {
		// Best effort; a cache failure never blocks spawning.
		_ = r.cache.SetSpawnConfig(ctx, routeID, merged)
	}
	return merged, nil
}

// Invalidate drops any cached config for routeID after an upsert. A global
// upsert also stales route-merged entries, but those are short-lived; the
// cache TTL bounds how long they survive.
func (r *Resolver) Invalidate(ctx context.Context, routeID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.InvalidateSpawnConfig(ctx, routeID)
}

// Validate checks the config invariants: every configured rate and
// multiplier must be non-negative. A missing base rate is allowed at this
// level because a caller-side scope may still supply one.
func Validate(cfg *domain.SpawnConfig) error {
	if cfg.BaseRate != nil && *cfg.BaseRate < 0 {
		return ErrNegativeMultiplier
	}
	for _, rate := range cfg.HourlyRates {
		if rate < 0 {
			return ErrNegativeMultiplier
		}
	}
	for _, mult := range cfg.DayMultipliers {
		if mult < 0 {
			return ErrNegativeMultiplier
		}
	}
	return nil
}

func (r *Resolver) load(ctx context.Context, routeID string) (*domain.SpawnConfig, error) {
	cfg, err := r.repo.GetByScope(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}
