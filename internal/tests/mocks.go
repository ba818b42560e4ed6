package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/geo"
	"transitdemand/internal/redis"
	"transitdemand/internal/repository"
	"transitdemand/internal/spawn"
)

// ──────────────────────────────────────────────
// MOCK PASSENGER REPOSITORY
// ──────────────────────────────────────────────

// MockPassengerRepository is a mock implementation of PassengerRepository.
// Claim and alight are compare-and-set under the mutex, matching the
// atomicity the postgres implementation gets from conditional UPDATEs.
type MockPassengerRepository struct {
	mu         sync.RWMutex
	passengers map[string]*domain.Passenger

	// Counters for verification
	CreateCallCount int32
	ClaimCallCount  int32

	// Error injection
	CreateError error
	ClaimError  error
}

// NewMockPassengerRepository creates a new mock passenger repository.
func NewMockPassengerRepository() *MockPassengerRepository {
	return &MockPassengerRepository{
		passengers: make(map[string]*domain.Passenger),
	}
}

// AddPassenger adds a passenger to the mock repository.
func (m *MockPassengerRepository) AddPassenger(p *domain.Passenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passengers[p.ID] = p
}

// GetPassenger returns a passenger for test assertions, or nil.
func (m *MockPassengerRepository) GetPassenger(id string) *domain.Passenger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passengers[id]
}

func (m *MockPassengerRepository) CreateBatch(ctx context.Context, passengers []*domain.Passenger) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range passengers {
		copy := *p
		m.passengers[p.ID] = &copy
	}
	return nil
}

func (m *MockPassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *p
	return &copy, nil
}

func (m *MockPassengerRepository) List(ctx context.Context, filter repository.PassengerFilter) ([]*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Passenger
	for _, p := range m.passengers {
		if filter.RouteID != "" && p.RouteID != filter.RouteID {
			continue
		}
		if filter.DepotID != "" && p.DepotID != filter.DepotID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockPassengerRepository) ClaimForBoarding(ctx context.Context, id string, at time.Time) (*domain.Passenger, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return nil, m.ClaimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Status != domain.PassengerStatusWaiting {
		return nil, repository.ErrAlreadyClaimed
	}
	p.Status = domain.PassengerStatusOnboard
	p.BoardedAt = at
	copy := *p
	return &copy, nil
}

func (m *MockPassengerRepository) CompleteAlight(ctx context.Context, id string, at time.Time) (*domain.Passenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Status != domain.PassengerStatusOnboard {
		return nil, repository.ErrNotOnboard
	}
	p.Status = domain.PassengerStatusCompleted
	p.AlightedAt = at
	copy := *p
	return &copy, nil
}

func (m *MockPassengerRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.passengers {
		if p.Status == domain.PassengerStatusWaiting && p.ExpiresAt.Before(now) {
			ids = append(ids, id)
			delete(m.passengers, id)
		}
	}
	return ids, nil
}

func (m *MockPassengerRepository) CountByStatus(ctx context.Context, routeID string) (map[domain.PassengerStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.PassengerStatus]int)
	for _, p := range m.passengers {
		if routeID != "" && p.RouteID != routeID {
			continue
		}
		counts[p.Status]++
	}
	return counts, nil
}

// ──────────────────────────────────────────────
// MOCK SPAWN CONFIG REPOSITORY
// ──────────────────────────────────────────────

// MockSpawnConfigRepository is a mock implementation of SpawnConfigRepository.
type MockSpawnConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*domain.SpawnConfig
}

// NewMockSpawnConfigRepository creates a new mock spawn config repository.
func NewMockSpawnConfigRepository() *MockSpawnConfigRepository {
	return &MockSpawnConfigRepository{
		configs: make(map[string]*domain.SpawnConfig),
	}
}

func (m *MockSpawnConfigRepository) GetByScope(ctx context.Context, routeID string) (*domain.SpawnConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[routeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *cfg
	return &copy, nil
}

func (m *MockSpawnConfigRepository) Upsert(ctx context.Context, cfg *domain.SpawnConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *cfg
	m.configs[cfg.RouteID] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent records one publish call.
type PublishedEvent struct {
	Topic   string
	Payload any
}

// MockPublisher records published events for verification.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

// Events returns a snapshot of recorded events.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

// EventsForTopic returns recorded events matching topic.
func (m *MockPublisher) EventsForTopic(topic string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []PublishedEvent
	for _, e := range m.events {
		if e.Topic == topic {
			result = append(result, e)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK GEO STORE
// ──────────────────────────────────────────────

// MockGeoStore is an in-memory implementation of GeoStoreInterface.
type MockGeoStore struct {
	mu        sync.RWMutex
	locations map[string]redis.PassengerLocation
}

// NewMockGeoStore creates a new mock geo store.
func NewMockGeoStore() *MockGeoStore {
	return &MockGeoStore{
		locations: make(map[string]redis.PassengerLocation),
	}
}

func (m *MockGeoStore) AddWaiting(ctx context.Context, passengerID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[passengerID] = redis.PassengerLocation{PassengerID: passengerID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockGeoStore) FindNearby(ctx context.Context, lat, lng, radiusM float64) ([]redis.PassengerLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []redis.PassengerLocation
	for _, loc := range m.locations {
		if geo.HaversineM(lat, lng, loc.Lat, loc.Lng) <= radiusM {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (m *MockGeoStore) Remove(ctx context.Context, passengerIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range passengerIDs {
		delete(m.locations, id)
	}
	return nil
}

// Contains reports whether the index holds passengerID, for test assertions.
func (m *MockGeoStore) Contains(passengerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[passengerID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of LockStoreInterface.
type MockLockStore struct {
	mu      sync.Mutex
	locks   map[string]bool
	lastTTL time.Duration
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]bool)}
}

func (m *MockLockStore) AcquireSpawnLock(ctx context.Context, scopeID string, window time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTTL = ttl
	key := scopeID + ":" + window.UTC().Format(time.RFC3339)
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

// LastAcquireTTL returns the TTL of the most recent acquire attempt.
func (m *MockLockStore) LastAcquireTTL() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTTL
}

// Held reports whether the lock for a scope and window is currently held.
func (m *MockLockStore) Held(scopeID string, window time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[scopeID+":"+window.UTC().Format(time.RFC3339)]
}

func (m *MockLockStore) ReleaseSpawnLock(ctx context.Context, scopeID string, window time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scopeID+":"+window.UTC().Format(time.RFC3339))
	return nil
}

// ──────────────────────────────────────────────
// MOCK BUILDING LOCATOR
// ──────────────────────────────────────────────

// MockBuildingLocator serves fixed building positions and depot topology.
type MockBuildingLocator struct {
	DepotBuildings map[string][]spawn.Point
	RouteBuildings map[string][]spawn.Point
	DepotTotals    map[string]int
	DepotRoutes    map[string][]string
}

// NewMockBuildingLocator creates an empty mock locator.
func NewMockBuildingLocator() *MockBuildingLocator {
	return &MockBuildingLocator{
		DepotBuildings: make(map[string][]spawn.Point),
		RouteBuildings: make(map[string][]spawn.Point),
		DepotTotals:    make(map[string]int),
		DepotRoutes:    make(map[string][]string),
	}
}

func (m *MockBuildingLocator) BuildingsNearDepot(ctx context.Context, depotID string) ([]spawn.Point, error) {
	return m.DepotBuildings[depotID], nil
}

func (m *MockBuildingLocator) BuildingsAlongRoute(ctx context.Context, routeID string) ([]spawn.Point, error) {
	return m.RouteBuildings[routeID], nil
}

func (m *MockBuildingLocator) TotalBuildingsAtDepot(ctx context.Context, depotID string) (int, error) {
	return m.DepotTotals[depotID], nil
}

func (m *MockBuildingLocator) RoutesServingDepot(ctx context.Context, depotID string) ([]string, error) {
	return m.DepotRoutes[depotID], nil
}

// Interface checks.
var (
	_ repository.PassengerRepository   = (*MockPassengerRepository)(nil)
	_ repository.SpawnConfigRepository = (*MockSpawnConfigRepository)(nil)
	_ redis.GeoStoreInterface          = (*MockGeoStore)(nil)
	_ redis.LockStoreInterface         = (*MockLockStore)(nil)
	_ spawn.BuildingLocator            = (*MockBuildingLocator)(nil)
)
