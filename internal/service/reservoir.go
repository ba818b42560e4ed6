package service

import (
	"context"
	"log"
	"sort"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/events"
	"transitdemand/internal/geo"
	"transitdemand/internal/redis"
	"transitdemand/internal/repository"
)

// ReservoirService holds WAITING passengers per depot and route and mediates
// safe hand-off to vehicles. The repository is the source of truth; the geo
// index is a best-effort pre-filter maintained alongside it.
type ReservoirService struct {
	repo      repository.PassengerRepository
	geoStore  redis.GeoStoreInterface
	publisher events.Publisher
}

// NewReservoirService creates a new ReservoirService. geoStore may be nil,
// which disables the index and falls back to repository scans.
func NewReservoirService(
	repo repository.PassengerRepository,
	geoStore redis.GeoStoreInterface,
	publisher events.Publisher,
) *ReservoirService {
	return &ReservoirService{
		repo:      repo,
		geoStore:  geoStore,
		publisher: publisher,
	}
}

// Insert appends a spawn batch to the reservoir and emits one
// passenger:spawned event per record. Events are published after the batch
// commits; a publish failure is logged and never unwinds the insert.
func (s *ReservoirService) Insert(ctx context.Context, passengers []*domain.Passenger) error {
	if len(passengers) == 0 {
		return nil
	}

	if err := s.repo.CreateBatch(ctx, passengers); err != nil {
		return err
	}

	for _, p := range passengers {
		if s.geoStore != nil {
			if err := s.geoStore.AddWaiting(ctx, p.ID, p.OriginLat, p.OriginLng); err != nil {
				log.Printf("geo index add failed for passenger %s: %v", p.ID, err)
			}
		}
		s.publish(ctx, events.TopicPassengerSpawned, p)
	}
	return nil
}

// QueryByStatus returns passengers matching the status and filters.
func (s *ReservoirService) QueryByStatus(ctx context.Context, status domain.PassengerStatus, filter repository.PassengerFilter) ([]*domain.Passenger, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	filter.Status = status
	return s.repo.List(ctx, filter)
}

// PassengerDistance pairs a passenger with its origin distance from a query point.
type PassengerDistance struct {
	Passenger *domain.Passenger
	DistanceM float64
}

// QueryNearLocation returns passengers whose origin lies within radiusM
// meters of the query point, sorted by ascending distance. Distances come
// from the haversine formula over repository records; the geo index only
// shrinks the candidate set.
func (s *ReservoirService) QueryNearLocation(ctx context.Context, lat, lng, radiusM float64, filter repository.PassengerFilter) ([]PassengerDistance, error) {
	if !geo.ValidLatLng(lat, lng) {
		return nil, ErrInvalidLocation
	}
	if radiusM <= 0 {
		return nil, ErrInvalidRadius
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	candidates, err := s.nearCandidates(ctx, lat, lng, radiusM, filter)
	if err != nil {
		return nil, err
	}

	results := make([]PassengerDistance, 0, len(candidates))
	for _, p := range candidates {
		d := geo.HaversineM(lat, lng, p.OriginLat, p.OriginLng)
		if d <= radiusM {
			results = append(results, PassengerDistance{Passenger: p, DistanceM: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceM < results[j].DistanceM
	})
	return results, nil
}

// nearCandidates picks the candidate set for a near query. The geo index only
// tracks WAITING passengers, so any other status filter needs a full scan; an
// index failure falls back to the scan as well.
func (s *ReservoirService) nearCandidates(ctx context.Context, lat, lng, radiusM float64, filter repository.PassengerFilter) ([]*domain.Passenger, error) {
	indexUsable := s.geoStore != nil &&
		(filter.Status == "" || filter.Status == domain.PassengerStatusWaiting)

	if !indexUsable {
		return s.repo.List(ctx, filter)
	}

	locations, err := s.geoStore.FindNearby(ctx, lat, lng, radiusM)
	if err != nil {
		log.Printf("geo index lookup failed, scanning repository: %v", err)
		return s.repo.List(ctx, filter)
	}

	candidates := make([]*domain.Passenger, 0, len(locations))
	for _, loc := range locations {
		p, err := s.repo.GetByID(ctx, loc.PassengerID)
		if err != nil {
			if err == repository.ErrNotFound {
				// Index entry outlived the record; drop it.
				_ = s.geoStore.Remove(ctx, loc.PassengerID)
				continue
			}
			return nil, err
		}
		if !matchesFilter(p, filter) {
			continue
		}
		candidates = append(candidates, p)
	}
	return candidates, nil
}

// ClaimForBoarding atomically transitions a WAITING passenger to ONBOARD and
// emits passenger:boarded. Exactly one of two concurrent claims on the same
// id succeeds; the other gets repository.ErrAlreadyClaimed.
func (s *ReservoirService) ClaimForBoarding(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	p, err := s.repo.ClaimForBoarding(ctx, passengerID, time.Now())
	if err != nil {
		return nil, err
	}

	if s.geoStore != nil {
		if err := s.geoStore.Remove(ctx, passengerID); err != nil {
			log.Printf("geo index remove failed for passenger %s: %v", passengerID, err)
		}
	}
	s.publish(ctx, events.TopicPassengerBoarded, p)
	return p, nil
}

// ExpireResult reports the outcome of an expiration sweep.
type ExpireResult struct {
	DeletedCount int
	DeletedIDs   []string
}

// ExpireStale hard-deletes every WAITING passenger whose expiry is in the
// past. ONBOARD and COMPLETED records are never touched: the deletion
// re-verifies WAITING status at the moment it runs, so a claim that lands
// mid-sweep wins the race.
func (s *ReservoirService) ExpireStale(ctx context.Context, now time.Time) (*ExpireResult, error) {
	ids, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 && s.geoStore != nil {
		if err := s.geoStore.Remove(ctx, ids...); err != nil {
			log.Printf("geo index cleanup failed after expiry sweep: %v", err)
		}
	}

	return &ExpireResult{DeletedCount: len(ids), DeletedIDs: ids}, nil
}

// StatsResult reports passenger counts for the stats endpoint.
type StatsResult struct {
	Total    int
	ByStatus map[domain.PassengerStatus]int
}

// Stats returns passenger counts by status, optionally scoped to a route
// and narrowed to a single status.
func (s *ReservoirService) Stats(ctx context.Context, routeID string, status domain.PassengerStatus) (*StatsResult, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}

	counts, err := s.repo.CountByStatus(ctx, routeID)
	if err != nil {
		return nil, err
	}

	if status != "" {
		narrowed := map[domain.PassengerStatus]int{status: counts[status]}
		return &StatsResult{Total: counts[status], ByStatus: narrowed}, nil
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	return &StatsResult{Total: total, ByStatus: counts}, nil
}

// publish emits a lifecycle event after the state change committed. Failures
// are logged; the bus owns retry, not this core.
func (s *ReservoirService) publish(ctx context.Context, topic string, p *domain.Passenger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, events.PassengerPayload(p)); err != nil {
		log.Printf("event publish failed: topic=%s passenger=%s: %v", topic, p.ID, err)
	}
}

func matchesFilter(p *domain.Passenger, filter repository.PassengerFilter) bool {
	if filter.RouteID != "" && p.RouteID != filter.RouteID {
		return false
	}
	if filter.DepotID != "" && p.DepotID != filter.DepotID {
		return false
	}
	if filter.Status != "" && p.Status != filter.Status {
		return false
	}
	return true
}
