package postgres

import (
	"context"
	"database/sql"

	"transitdemand/internal/spawn"
)

// BuildingRepository resolves building positions from the imported GeoJSON
// data. It implements spawn.BuildingLocator.
type BuildingRepository struct {
	q Querier
}

// NewBuildingRepository creates a new PostgreSQL building repository.
func NewBuildingRepository(db *sql.DB) *BuildingRepository {
	return &BuildingRepository{q: db}
}

// BuildingsNearDepot returns the positions of buildings in a depot's catchment.
func (r *BuildingRepository) BuildingsNearDepot(ctx context.Context, depotID string) ([]spawn.Point, error) {
	query := `SELECT lat, lng FROM buildings WHERE depot_id = $1`
	return r.queryPoints(ctx, query, depotID)
}

// BuildingsAlongRoute returns the positions of buildings along a route corridor.
func (r *BuildingRepository) BuildingsAlongRoute(ctx context.Context, routeID string) ([]spawn.Point, error) {
	query := `SELECT lat, lng FROM buildings WHERE route_id = $1`
	return r.queryPoints(ctx, query, routeID)
}

// TotalBuildingsAtDepot counts buildings across every route served by the
// depot, the denominator of the zero-sum attractiveness share.
func (r *BuildingRepository) TotalBuildingsAtDepot(ctx context.Context, depotID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM buildings
		WHERE route_id IN (SELECT route_id FROM depot_routes WHERE depot_id = $1)
	`

	var count int
	if err := r.q.QueryRowContext(ctx, query, depotID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// RoutesServingDepot returns the ids of the routes that terminate at a depot.
func (r *BuildingRepository) RoutesServingDepot(ctx context.Context, depotID string) ([]string, error) {
	query := `SELECT route_id FROM depot_routes WHERE depot_id = $1`

	rows, err := r.q.QueryContext(ctx, query, depotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		routes = append(routes, id)
	}
	return routes, rows.Err()
}

func (r *BuildingRepository) queryPoints(ctx context.Context, query string, arg any) ([]spawn.Point, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []spawn.Point
	for rows.Next() {
		var p spawn.Point
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

var _ spawn.BuildingLocator = (*BuildingRepository)(nil)
