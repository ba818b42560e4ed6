package service

import (
	"context"
	"errors"
	"log"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/redis"
	"transitdemand/internal/spawn"
)

// minSpawnLockTTL is the floor for the spawn-window lock TTL. The lock must
// outlive its window or a second scheduler could re-acquire it mid-window and
// double-spawn; the floor keeps short windows locked long enough for a slow
// spawn to finish, and still bounds how long a crashed scheduler holds one.
const minSpawnLockTTL = 5 * time.Minute

// SpawnService runs the spawn pipeline: resolve config, compute the demand
// breakdown, build passenger records, insert them into the reservoir.
type SpawnService struct {
	resolver      *spawn.Resolver
	calculator    *spawn.Calculator
	factory       *spawn.Factory
	locator       spawn.BuildingLocator
	reservoir     *ReservoirService
	lockStore     redis.LockStoreInterface
	defaultPolicy spawn.PolicyKind
}

// NewSpawnService creates a new SpawnService. lockStore may be nil, which
// disables window locking (single-scheduler deployments).
func NewSpawnService(
	resolver *spawn.Resolver,
	calculator *spawn.Calculator,
	factory *spawn.Factory,
	locator spawn.BuildingLocator,
	reservoir *ReservoirService,
	lockStore redis.LockStoreInterface,
	defaultPolicy spawn.PolicyKind,
) *SpawnService {
	return &SpawnService{
		resolver:      resolver,
		calculator:    calculator,
		factory:       factory,
		locator:       locator,
		reservoir:     reservoir,
		lockStore:     lockStore,
		defaultPolicy: defaultPolicy,
	}
}

// SpawnRequest describes one spawn trigger. Exactly one of DepotIDs or
// RouteID must be set. A non-zero Seed makes the run reproducible.
type SpawnRequest struct {
	DepotIDs      []string
	RouteID       string
	At            time.Time
	WindowMinutes float64
	Policy        spawn.PolicyKind
	Seed          int64
}

// RouteSpawnResult is the outcome for one depot/route pair.
type RouteSpawnResult struct {
	DepotID    string
	RouteID    string
	Breakdown  *spawn.Breakdown
	Passengers []*domain.Passenger
}

// SpawnResult is the outcome of one spawn trigger.
type SpawnResult struct {
	Results []RouteSpawnResult
	Spawned []*domain.Passenger
}

// Spawn runs the pipeline for every depot/route pair in scope. Routes whose
// config cannot produce a rate are skipped and logged; the request fails only
// when no route in scope had a usable config. When a later depot fails after
// earlier depots already committed, the error comes back alongside the
// partial SpawnResult so the committed work stays visible to the caller.
func (s *SpawnService) Spawn(ctx context.Context, req SpawnRequest) (*SpawnResult, error) {
	if (len(req.DepotIDs) == 0) == (req.RouteID == "") {
		return nil, ErrInvalidSpawnScope
	}
	if req.WindowMinutes <= 0 {
		return nil, ErrInvalidTimeWindow
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	calculator, factory := s.calculator, s.factory
	if req.Seed != 0 {
		calculator = spawn.NewSeededCalculator(req.Seed)
		factory = spawn.NewSeededFactory(req.Seed + 1)
	}

	policy := spawn.PolicyFor(s.defaultPolicy)
	if req.Policy != "" {
		policy = spawn.PolicyFor(req.Policy)
	}

	windowDur := time.Duration(req.WindowMinutes * float64(time.Minute))
	window := at.Truncate(windowDur)
	result := &SpawnResult{}
	var lastConfigErr error

	if req.RouteID != "" {
		if err := s.acquireWindow(ctx, req.RouteID, window, windowDur); err != nil {
			return nil, err
		}
		rr, err := s.spawnRoute(ctx, calculator, factory, policy, "", req.RouteID, at, req.WindowMinutes)
		if err != nil {
			// Nothing committed for this window; free it for a retry.
			s.releaseWindow(ctx, req.RouteID, window)
			return nil, err
		}
		result.Results = append(result.Results, *rr)
		result.Spawned = append(result.Spawned, rr.Passengers...)
		return result, nil
	}

	for _, depotID := range req.DepotIDs {
		if err := s.acquireWindow(ctx, depotID, window, windowDur); err != nil {
			return partialResult(result), err
		}

		routes, err := s.locator.RoutesServingDepot(ctx, depotID)
		if err != nil {
			s.releaseWindow(ctx, depotID, window)
			return partialResult(result), err
		}

		depotCommitted := false
		for _, routeID := range routes {
			rr, err := s.spawnRoute(ctx, calculator, factory, policy, depotID, routeID, at, req.WindowMinutes)
			if err != nil {
				if errors.Is(err, spawn.ErrMissingBaseRate) || errors.Is(err, spawn.ErrNegativeMultiplier) {
					log.Printf("spawn skipped for depot=%s route=%s: %v", depotID, routeID, err)
					lastConfigErr = err
					continue
				}
				if !depotCommitted {
					s.releaseWindow(ctx, depotID, window)
				}
				return partialResult(result), err
			}
			depotCommitted = true
			result.Results = append(result.Results, *rr)
			result.Spawned = append(result.Spawned, rr.Passengers...)
		}
	}

	if len(result.Results) == 0 && lastConfigErr != nil {
		return nil, lastConfigErr
	}
	return result, nil
}

// partialResult keeps an accumulated result visible on error, or nil when
// nothing committed.
func partialResult(result *SpawnResult) *SpawnResult {
	if len(result.Results) == 0 {
		return nil
	}
	return result
}

// spawnRoute runs resolve → calculate → build → insert for one scope.
func (s *SpawnService) spawnRoute(
	ctx context.Context,
	calculator *spawn.Calculator,
	factory *spawn.Factory,
	policy spawn.Policy,
	depotID, routeID string,
	at time.Time,
	windowMinutes float64,
) (*RouteSpawnResult, error) {
	cfg, err := s.resolver.Resolve(ctx, routeID)
	if err != nil {
		return nil, err
	}

	routeBuildings, err := s.locator.BuildingsAlongRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	scope := spawn.ScopeRoute
	origins := routeBuildings
	sp := spawn.SpatialInputs{BuildingsAlongRoute: len(routeBuildings)}

	if depotID != "" {
		scope = spawn.ScopeDepot
		depotBuildings, err := s.locator.BuildingsNearDepot(ctx, depotID)
		if err != nil {
			return nil, err
		}
		total, err := s.locator.TotalBuildingsAtDepot(ctx, depotID)
		if err != nil {
			return nil, err
		}
		origins = depotBuildings
		sp.BuildingsNearDepot = len(depotBuildings)
		sp.TotalBuildingsAtDepot = total
	}

	breakdown, err := calculator.Calculate(policy, cfg, at, scope, sp, windowMinutes)
	if err != nil {
		return nil, err
	}

	passengers := factory.Build(spawn.BuildRequest{
		DepotID:   depotID,
		RouteID:   routeID,
		Count:     breakdown.SpawnCount,
		Origins:   origins,
		Stops:     routeBuildings,
		SpawnedAt: at,
		TTL:       cfg.TTL,
	})

	if err := s.reservoir.Insert(ctx, passengers); err != nil {
		return nil, err
	}

	return &RouteSpawnResult{
		DepotID:    depotID,
		RouteID:    routeID,
		Breakdown:  breakdown,
		Passengers: passengers,
	}, nil
}

func (s *SpawnService) acquireWindow(ctx context.Context, scopeID string, window time.Time, windowDur time.Duration) error {
	if s.lockStore == nil {
		return nil
	}
	ttl := windowDur
	if ttl < minSpawnLockTTL {
		ttl = minSpawnLockTTL
	}
	locked, err := s.lockStore.AcquireSpawnLock(ctx, scopeID, window, ttl)
	if err != nil {
		return err
	}
	if !locked {
		return ErrSpawnWindowLocked
	}
	return nil
}

// releaseWindow frees a window whose spawn committed nothing, so a retry does
// not have to wait out the lock TTL.
func (s *SpawnService) releaseWindow(ctx context.Context, scopeID string, window time.Time) {
	if s.lockStore == nil {
		return
	}
	if err := s.lockStore.ReleaseSpawnLock(ctx, scopeID, window); err != nil {
		log.Printf("spawn lock release failed for scope=%s: %v", scopeID, err)
	}
}
