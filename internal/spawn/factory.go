package spawn

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"transitdemand/internal/domain"
)

// Point is a building or POI position.
type Point struct {
	Lat float64
	Lng float64
}

// BuildingLocator resolves building positions and depot/route topology from
// the imported geospatial data. Implemented by the persistence layer;
// injected so the factory stays testable.
type BuildingLocator interface {
	BuildingsNearDepot(ctx context.Context, depotID string) ([]Point, error)
	BuildingsAlongRoute(ctx context.Context, routeID string) ([]Point, error)
	TotalBuildingsAtDepot(ctx context.Context, depotID string) (int, error)
	RoutesServingDepot(ctx context.Context, depotID string) ([]string, error)
}

// Direction bias: morning commutes pull riders toward the depot, evening
// commutes push them out. Outside those windows the choice is even.
const (
	morningStartHour = 6
	morningEndHour   = 11
	eveningStartHour = 15
	eveningEndHour   = 20
	directionBias    = 2.0
)

// Factory turns a sampled spawn count into concrete passenger records.
type Factory struct {
	rng *rand.Rand
}

// NewFactory creates a factory seeded for production use.
func NewFactory() *Factory {
	return NewSeededFactory(time.Now().UnixNano())
}

// NewSeededFactory creates a factory with an explicit seed.
func NewSeededFactory(seed int64) *Factory {
	return &Factory{rng: rand.New(rand.NewSource(seed))}
}

// BuildRequest carries everything the factory needs for one spawn batch.
type BuildRequest struct {
	DepotID   string
	RouteID   string
	Count     int
	Origins   []Point
	Stops     []Point
	SpawnedAt time.Time
	TTL       time.Duration
}

// Build creates Count WAITING passengers. Origins are the candidate pickup
// positions (near-depot buildings for depot spawns, corridor buildings for
// route spawns); Stops are the candidate destinations along the route. An
// empty candidate set yields no passengers rather than an error: zero
// buildings is a designed zero-demand case.
func (f *Factory) Build(req BuildRequest) []*domain.Passenger {
	if req.Count <= 0 || len(req.Origins) == 0 || len(req.Stops) == 0 {
		return nil
	}

	passengers := make([]*domain.Passenger, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		origin := req.Origins[f.rng.Intn(len(req.Origins))]
		dest := f.pickDestination(origin, req.Stops)

		passengers = append(passengers, &domain.Passenger{
			ID:             uuid.New().String(),
			DepotID:        req.DepotID,
			RouteID:        req.RouteID,
			OriginLat:      origin.Lat,
			OriginLng:      origin.Lng,
			DestinationLat: dest.Lat,
			DestinationLng: dest.Lng,
			Direction:      f.pickDirection(req.SpawnedAt),
			Status:         domain.PassengerStatusWaiting,
			SpawnedAt:      req.SpawnedAt,
			ExpiresAt:      req.SpawnedAt.Add(req.TTL),
		})
	}
	return passengers
}

// pickDestination draws a destination distinct from the origin when the
// candidate set allows it.
func (f *Factory) pickDestination(origin Point, stops []Point) Point {
	dest := stops[f.rng.Intn(len(stops))]
	if len(stops) == 1 {
		return dest
	}
	for attempts := 0; dest == origin && attempts < 3; attempts++ {
		dest = stops[f.rng.Intn(len(stops))]
	}
	return dest
}

func (f *Factory) pickDirection(at time.Time) domain.Direction {
	pInbound := 0.5
	hour := at.Hour()
	switch {
	case hour >= morningStartHour && hour <= morningEndHour:
		pInbound = directionBias / (directionBias + 1.0)
	case hour >= eveningStartHour && hour <= eveningEndHour:
		pInbound = 1.0 / (directionBias + 1.0)
	}
	if f.rng.Float64() < pInbound {
		return domain.DirectionInbound
	}
	return domain.DirectionOutbound
}
