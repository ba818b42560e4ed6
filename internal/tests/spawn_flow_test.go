package tests

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/service"
	"transitdemand/internal/spawn"
)

type spawnFixture struct {
	configs   *MockSpawnConfigRepository
	repo      *MockPassengerRepository
	locator   *MockBuildingLocator
	locks     *MockLockStore
	publisher *MockPublisher
	service   *service.SpawnService
}

func newSpawnFixture(t *testing.T) *spawnFixture {
	t.Helper()

	f := &spawnFixture{
		configs:   NewMockSpawnConfigRepository(),
		repo:      NewMockPassengerRepository(),
		locator:   NewMockBuildingLocator(),
		locks:     NewMockLockStore(),
		publisher: NewMockPublisher(),
	}

	resolver := spawn.NewResolver(f.configs, nil, 30*time.Minute)
	reservoir := service.NewReservoirService(f.repo, nil, f.publisher)
	f.service = service.NewSpawnService(
		resolver,
		spawn.NewCalculator(),
		spawn.NewFactory(),
		f.locator,
		reservoir,
		f.locks,
		spawn.PolicyIndependent,
	)
	return f
}

func floatPtr(v float64) *float64 { return &v }

// gridPoints lays n buildings on a small grid near the given anchor.
func gridPoints(lat, lng float64, n int) []spawn.Point {
	points := make([]spawn.Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, spawn.Point{
			Lat: lat + float64(i%10)*0.001,
			Lng: lng + float64(i/10)*0.001,
		})
	}
	return points
}

func TestSpawn_RouteScopeDeterministic(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC)

	run := func(f *spawnFixture) *service.SpawnResult {
		t.Helper()
		f.configs.Upsert(ctx, &domain.SpawnConfig{
			BaseRate:       floatPtr(0.05),
			HourlyRates:    map[int]float64{8: 2.0},
			DayMultipliers: map[time.Weekday]float64{time.Monday: 1.3},
		})
		f.locator.RouteBuildings["route-12"] = gridPoints(-6.82, 39.27, 400)

		result, err := f.service.Spawn(ctx, service.SpawnRequest{
			RouteID:       "route-12",
			At:            at,
			WindowMinutes: 15,
			Seed:          99,
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		return result
	}

	first := run(newSpawnFixture(t))
	second := run(newSpawnFixture(t))

	if len(first.Results) != 1 {
		t.Fatalf("expected 1 route result, got %d", len(first.Results))
	}
	bd := first.Results[0].Breakdown

	if math.Abs(bd.EffectiveRate-0.13) > 1e-9 {
		t.Errorf("expected effective rate 0.13, got %v", bd.EffectiveRate)
	}
	if wantLambda := 400 * 0.13 * (15.0 / 60.0); math.Abs(bd.Lambda-wantLambda) > 1e-9 {
		t.Errorf("expected lambda %v, got %v", wantLambda, bd.Lambda)
	}
	if bd.SpawnCount != second.Results[0].Breakdown.SpawnCount {
		t.Errorf("seeded runs diverged: %d vs %d",
			bd.SpawnCount, second.Results[0].Breakdown.SpawnCount)
	}
	if len(first.Spawned) != bd.SpawnCount {
		t.Errorf("expected %d spawned passengers, got %d", bd.SpawnCount, len(first.Spawned))
	}
	for _, p := range first.Spawned {
		if p.Status != domain.PassengerStatusWaiting {
			t.Errorf("passenger %s spawned with status %s", p.ID, p.Status)
		}
		if p.RouteID != "route-12" {
			t.Errorf("passenger %s has route %s", p.ID, p.RouteID)
		}
	}
}

func TestSpawn_PersistsAndPublishesBatch(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{
		BaseRate:    floatPtr(0.5),
		HourlyRates: map[int]float64{8: 2.0},
	})
	f.locator.RouteBuildings["route-1"] = gridPoints(-6.8, 39.28, 200)

	result, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID:       "route-1",
		At:            time.Date(2026, time.August, 24, 8, 30, 0, 0, time.UTC),
		WindowMinutes: 30,
		Seed:          7,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if len(result.Spawned) == 0 {
		t.Fatal("expected a non-empty spawn batch at lambda 100")
	}

	for _, p := range result.Spawned {
		if f.repo.GetPassenger(p.ID) == nil {
			t.Errorf("passenger %s not persisted", p.ID)
		}
	}
	if events := f.publisher.EventsForTopic("passenger:spawned"); len(events) != len(result.Spawned) {
		t.Errorf("expected %d spawned events, got %d", len(result.Spawned), len(events))
	}
}

func TestSpawn_WindowLockConflict(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{BaseRate: floatPtr(0.1)})
	f.locator.RouteBuildings["route-3"] = gridPoints(-6.8, 39.28, 50)

	req := service.SpawnRequest{
		RouteID:       "route-3",
		At:            time.Date(2026, time.August, 24, 9, 5, 0, 0, time.UTC),
		WindowMinutes: 15,
		Seed:          3,
	}

	if _, err := f.service.Spawn(ctx, req); err != nil {
		t.Fatalf("first spawn failed: %v", err)
	}
	if _, err := f.service.Spawn(ctx, req); !errors.Is(err, service.ErrSpawnWindowLocked) {
		t.Fatalf("expected ErrSpawnWindowLocked on the same window, got %v", err)
	}

	// The next window is a fresh lock.
	req.At = req.At.Add(15 * time.Minute)
	if _, err := f.service.Spawn(ctx, req); err != nil {
		t.Fatalf("spawn in the next window failed: %v", err)
	}
}

func TestSpawn_PartialDepotFailureKeepsCommittedWork(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{
		BaseRate:    floatPtr(0.5),
		HourlyRates: map[int]float64{8: 2.0},
	})
	for _, depotID := range []string{"depot-1", "depot-2"} {
		f.locator.DepotRoutes[depotID] = []string{"route-" + depotID}
		f.locator.DepotBuildings[depotID] = gridPoints(-6.82, 39.27, 200)
		f.locator.DepotTotals[depotID] = 200
		f.locator.RouteBuildings["route-"+depotID] = gridPoints(-6.81, 39.26, 200)
	}

	at := time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC)
	window := at.Truncate(15 * time.Minute)

	// Another scheduler already holds depot-2's window.
	if ok, _ := f.locks.AcquireSpawnLock(ctx, "depot-2", window, time.Minute); !ok {
		t.Fatal("failed to pre-acquire depot-2 lock")
	}

	result, err := f.service.Spawn(ctx, service.SpawnRequest{
		DepotIDs:      []string{"depot-1", "depot-2"},
		At:            at,
		WindowMinutes: 15,
		Seed:          13,
	})
	if !errors.Is(err, service.ErrSpawnWindowLocked) {
		t.Fatalf("expected ErrSpawnWindowLocked, got %v", err)
	}
	if result == nil || len(result.Spawned) == 0 {
		t.Fatal("expected depot-1's committed batch alongside the error")
	}
	for _, rr := range result.Results {
		if rr.DepotID != "depot-1" {
			t.Errorf("unexpected result for depot %q", rr.DepotID)
		}
	}
	for _, p := range result.Spawned {
		if f.repo.GetPassenger(p.ID) == nil {
			t.Errorf("committed passenger %s missing from the result", p.ID)
		}
	}
}

func TestSpawn_LockTTLCoversWindow(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{BaseRate: floatPtr(0.1)})
	f.locator.RouteBuildings["route-1"] = gridPoints(-6.8, 39.28, 50)

	base := time.Date(2026, time.August, 24, 9, 0, 0, 0, time.UTC)

	if _, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID: "route-1", At: base, WindowMinutes: 60, Seed: 1,
	}); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if got := f.locks.LastAcquireTTL(); got < 60*time.Minute {
		t.Errorf("a 60-minute window must be locked for at least its length, got TTL %v", got)
	}

	if _, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID: "route-1", At: base.Add(12 * time.Hour), WindowMinutes: 1, Seed: 1,
	}); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if got := f.locks.LastAcquireTTL(); got < 5*time.Minute {
		t.Errorf("short windows keep the TTL floor, got %v", got)
	}
}

func TestSpawn_FractionalWindowSharesLock(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{BaseRate: floatPtr(0.1)})
	f.locator.RouteBuildings["route-1"] = gridPoints(-6.8, 39.28, 50)

	// Two triggers 15 seconds apart inside the same half-minute window must
	// contend for one lock.
	first := time.Date(2026, time.August, 24, 11, 0, 5, 0, time.UTC)
	second := first.Add(15 * time.Second)

	if _, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID: "route-1", At: first, WindowMinutes: 0.5, Seed: 4,
	}); err != nil {
		t.Fatalf("first spawn failed: %v", err)
	}
	if _, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID: "route-1", At: second, WindowMinutes: 0.5, Seed: 4,
	}); !errors.Is(err, service.ErrSpawnWindowLocked) {
		t.Fatalf("expected ErrSpawnWindowLocked inside the same fractional window, got %v", err)
	}
}

func TestSpawn_ReleasesLockWhenNothingCommitted(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.locator.RouteBuildings["route-5"] = gridPoints(-6.8, 39.28, 50)

	at := time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC)
	req := service.SpawnRequest{RouteID: "route-5", At: at, WindowMinutes: 15, Seed: 2}

	// No config: the spawn fails before committing anything.
	if _, err := f.service.Spawn(ctx, req); !errors.Is(err, spawn.ErrMissingBaseRate) {
		t.Fatalf("expected ErrMissingBaseRate, got %v", err)
	}
	if f.locks.Held("route-5", at.Truncate(15*time.Minute)) {
		t.Fatal("a failed spawn must release its window lock")
	}

	// Operator fixes the config; the same window is retryable immediately.
	f.configs.Upsert(ctx, &domain.SpawnConfig{BaseRate: floatPtr(0.1)})
	if _, err := f.service.Spawn(ctx, req); err != nil {
		t.Fatalf("retry after config fix failed: %v", err)
	}
}

func TestSpawn_InvalidScope(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	cases := []struct {
		name string
		req  service.SpawnRequest
	}{
		{"neither depot nor route", service.SpawnRequest{WindowMinutes: 15}},
		{"both depot and route", service.SpawnRequest{
			DepotIDs: []string{"depot-1"}, RouteID: "route-1", WindowMinutes: 15,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.service.Spawn(ctx, tc.req); !errors.Is(err, service.ErrInvalidSpawnScope) {
				t.Errorf("expected ErrInvalidSpawnScope, got %v", err)
			}
		})
	}

	if _, err := f.service.Spawn(ctx, service.SpawnRequest{RouteID: "r"}); !errors.Is(err, service.ErrInvalidTimeWindow) {
		t.Errorf("expected ErrInvalidTimeWindow for zero window, got %v", err)
	}
}

func TestSpawn_MissingBaseRate(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	// A route override without a base rate, and no global config to fall
	// back on, cannot produce a rate.
	f.locator.RouteBuildings["route-9"] = gridPoints(-6.8, 39.28, 10)

	_, err := f.service.Spawn(ctx, service.SpawnRequest{
		RouteID:       "route-9",
		At:            time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC),
		WindowMinutes: 15,
	})
	if !errors.Is(err, spawn.ErrMissingBaseRate) {
		t.Fatalf("expected ErrMissingBaseRate, got %v", err)
	}
}

func TestSpawn_DepotScopeCoversAllRoutes(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{
		BaseRate:    floatPtr(0.4),
		HourlyRates: map[int]float64{8: 2.0},
	})
	f.locator.DepotRoutes["depot-1"] = []string{"route-a", "route-b"}
	f.locator.DepotBuildings["depot-1"] = gridPoints(-6.82, 39.27, 300)
	f.locator.DepotTotals["depot-1"] = 500
	f.locator.RouteBuildings["route-a"] = gridPoints(-6.81, 39.26, 350)
	f.locator.RouteBuildings["route-b"] = gridPoints(-6.83, 39.29, 150)

	result, err := f.service.Spawn(ctx, service.SpawnRequest{
		DepotIDs:      []string{"depot-1"},
		At:            time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC),
		WindowMinutes: 60,
		Seed:          11,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected results for 2 routes, got %d", len(result.Results))
	}
	for _, rr := range result.Results {
		if rr.DepotID != "depot-1" {
			t.Errorf("result for route %s carries depot %q", rr.RouteID, rr.DepotID)
		}
	}
}

func TestSpawn_ZeroSumSharesTerminalPopulation(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	f.configs.Upsert(ctx, &domain.SpawnConfig{BaseRate: floatPtr(0.13)})
	f.locator.DepotRoutes["depot-1"] = []string{"route-a", "route-b"}
	f.locator.DepotBuildings["depot-1"] = gridPoints(-6.82, 39.27, 1556)
	f.locator.DepotTotals["depot-1"] = 500
	f.locator.RouteBuildings["route-a"] = gridPoints(-6.81, 39.26, 350)
	f.locator.RouteBuildings["route-b"] = gridPoints(-6.83, 39.29, 150)

	result, err := f.service.Spawn(ctx, service.SpawnRequest{
		DepotIDs:      []string{"depot-1"},
		At:            time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC),
		WindowMinutes: 60,
		Policy:        spawn.PolicyZeroSum,
		Seed:          21,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	terminal := 1556 * 0.13
	var totalPerHour float64
	for _, rr := range result.Results {
		if math.Abs(rr.Breakdown.TerminalPopulation-terminal) > 0.01 {
			t.Errorf("route %s: expected terminal population %.2f, got %v",
				rr.RouteID, terminal, rr.Breakdown.TerminalPopulation)
		}
		totalPerHour += rr.Breakdown.PassengersPerHour
	}

	// 350 + 150 buildings over a 500 total: the routes split the terminal
	// population exactly.
	if math.Abs(totalPerHour-terminal)/terminal > 1e-6 {
		t.Errorf("expected per-route rates to sum to %.4f, got %.4f", terminal, totalPerHour)
	}
}

func TestSpawn_SkipsUnconfiguredRoutesAtDepot(t *testing.T) {
	ctx := context.Background()
	f := newSpawnFixture(t)

	// Only route-a carries a base rate; route-b must be skipped, not fail
	// the whole depot.
	f.configs.Upsert(ctx, &domain.SpawnConfig{
		RouteID:  "route-a",
		BaseRate: floatPtr(0.2),
	})
	f.locator.DepotRoutes["depot-1"] = []string{"route-a", "route-b"}
	f.locator.DepotBuildings["depot-1"] = gridPoints(-6.82, 39.27, 100)
	f.locator.DepotTotals["depot-1"] = 100
	f.locator.RouteBuildings["route-a"] = gridPoints(-6.81, 39.26, 60)
	f.locator.RouteBuildings["route-b"] = gridPoints(-6.83, 39.29, 40)

	result, err := f.service.Spawn(ctx, service.SpawnRequest{
		DepotIDs:      []string{"depot-1"},
		At:            time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC),
		WindowMinutes: 30,
		Seed:          5,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].RouteID != "route-a" {
		t.Fatalf("expected only route-a in results, got %+v", result.Results)
	}
}

func TestResolver_RouteOverridesGlobal(t *testing.T) {
	ctx := context.Background()
	configs := NewMockSpawnConfigRepository()

	configs.Upsert(ctx, &domain.SpawnConfig{
		BaseRate:       floatPtr(0.05),
		HourlyRates:    map[int]float64{8: 2.0, 17: 1.8},
		DayMultipliers: map[time.Weekday]float64{time.Monday: 1.3},
		TTL:            20 * time.Minute,
	})
	configs.Upsert(ctx, &domain.SpawnConfig{
		RouteID:     "route-7",
		HourlyRates: map[int]float64{8: 3.0},
	})

	resolver := spawn.NewResolver(configs, nil, 30*time.Minute)

	merged, err := resolver.Resolve(ctx, "route-7")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if merged.BaseRate == nil || *merged.BaseRate != 0.05 {
		t.Errorf("expected base rate inherited from global, got %v", merged.BaseRate)
	}
	if got := merged.HourlyRates[8]; got != 3.0 {
		t.Errorf("expected route hour-8 override 3.0, got %v", got)
	}
	if got := merged.HourlyRates[17]; got != 1.8 {
		t.Errorf("expected global hour-17 rate 1.8 to survive, got %v", got)
	}
	if got := merged.DayMultipliers[time.Monday]; got != 1.3 {
		t.Errorf("expected global Monday multiplier 1.3, got %v", got)
	}
	if merged.TTL != 20*time.Minute {
		t.Errorf("expected TTL 20m from global, got %v", merged.TTL)
	}
}

func TestResolver_RejectsNegativeMultiplier(t *testing.T) {
	ctx := context.Background()
	configs := NewMockSpawnConfigRepository()

	configs.Upsert(ctx, &domain.SpawnConfig{
		BaseRate:    floatPtr(0.05),
		HourlyRates: map[int]float64{8: -1.0},
	})

	resolver := spawn.NewResolver(configs, nil, 30*time.Minute)
	if _, err := resolver.Resolve(ctx, ""); !errors.Is(err, spawn.ErrNegativeMultiplier) {
		t.Fatalf("expected ErrNegativeMultiplier, got %v", err)
	}
}
