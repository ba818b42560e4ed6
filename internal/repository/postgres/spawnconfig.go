package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/repository"
)

// SpawnConfigRepository is a PostgreSQL implementation of repository.SpawnConfigRepository.
//
// The hourly and day multiplier maps are stored as JSONB columns: the set of
// keys is sparse and read as a unit, so normalizing them into rows buys nothing.
type SpawnConfigRepository struct {
	q Querier
}

// NewSpawnConfigRepository creates a new PostgreSQL spawn config repository.
func NewSpawnConfigRepository(db *sql.DB) *SpawnConfigRepository {
	return &SpawnConfigRepository{q: db}
}

// GetByScope retrieves the config for a route, or the global config when
// routeID is empty.
func (r *SpawnConfigRepository) GetByScope(ctx context.Context, routeID string) (*domain.SpawnConfig, error) {
	query := `
		SELECT id, route_id, base_rate, hourly_rates, day_multipliers, ttl_seconds, updated_at
		FROM spawn_configs WHERE route_id IS NOT DISTINCT FROM $1
	`

	var scope sql.NullString
	if routeID != "" {
		scope = sql.NullString{String: routeID, Valid: true}
	}

	var cfg domain.SpawnConfig
	var route sql.NullString
	var baseRate sql.NullFloat64
	var hourlyJSON, dayJSON []byte
	var ttlSeconds int64

	err := r.q.QueryRowContext(ctx, query, scope).Scan(
		&cfg.ID,
		&route,
		&baseRate,
		&hourlyJSON,
		&dayJSON,
		&ttlSeconds,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if route.Valid {
		cfg.RouteID = route.String
	}
	if baseRate.Valid {
		v := baseRate.Float64
		cfg.BaseRate = &v
	}
	cfg.TTL = time.Duration(ttlSeconds) * time.Second

	if cfg.HourlyRates, err = decodeHourMap(hourlyJSON); err != nil {
		return nil, err
	}
	if cfg.DayMultipliers, err = decodeDayMap(dayJSON); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert creates or replaces the config for its scope.
func (r *SpawnConfigRepository) Upsert(ctx context.Context, cfg *domain.SpawnConfig) error {
	query := `
		INSERT INTO spawn_configs (id, route_id, base_rate, hourly_rates, day_multipliers, ttl_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (route_id) DO UPDATE
		SET base_rate = EXCLUDED.base_rate,
		    hourly_rates = EXCLUDED.hourly_rates,
		    day_multipliers = EXCLUDED.day_multipliers,
		    ttl_seconds = EXCLUDED.ttl_seconds,
		    updated_at = EXCLUDED.updated_at
	`

	var scope sql.NullString
	if cfg.RouteID != "" {
		scope = sql.NullString{String: cfg.RouteID, Valid: true}
	}

	var baseRate sql.NullFloat64
	if cfg.BaseRate != nil {
		baseRate = sql.NullFloat64{Float64: *cfg.BaseRate, Valid: true}
	}

	hourlyJSON, err := encodeHourMap(cfg.HourlyRates)
	if err != nil {
		return err
	}
	dayJSON, err := encodeDayMap(cfg.DayMultipliers)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		cfg.ID,
		scope,
		baseRate,
		hourlyJSON,
		dayJSON,
		int64(cfg.TTL/time.Second),
		cfg.UpdatedAt,
	)
	return err
}

func encodeHourMap(m map[int]float64) ([]byte, error) {
	if m == nil {
		m = map[int]float64{}
	}
	return json.Marshal(m)
}

func decodeHourMap(data []byte) (map[int]float64, error) {
	m := make(map[int]float64)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeDayMap(m map[time.Weekday]float64) ([]byte, error) {
	out := make(map[string]float64, len(m))
	for d, v := range m {
		out[strconv.Itoa(int(d))] = v
	}
	return json.Marshal(out)
}

func decodeDayMap(data []byte) (map[time.Weekday]float64, error) {
	m := make(map[time.Weekday]float64)
	if len(data) == 0 {
		return m, nil
	}
	raw := make(map[string]float64)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		m[time.Weekday(d)] = v
	}
	return m, nil
}
