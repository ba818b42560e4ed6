package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"transitdemand/internal/domain"
	"transitdemand/internal/repository"
)

// PassengerRepository is a PostgreSQL implementation of repository.PassengerRepository.
type PassengerRepository struct {
	db *sql.DB
	q  Querier
}

// NewPassengerRepository creates a new PostgreSQL passenger repository.
func NewPassengerRepository(db *sql.DB) *PassengerRepository {
	return &PassengerRepository{db: db, q: db}
}

// NewPassengerRepositoryWithTx creates a passenger repository using a transaction.
func NewPassengerRepositoryWithTx(tx *sql.Tx) *PassengerRepository {
	return &PassengerRepository{q: tx}
}

const passengerColumns = `id, depot_id, route_id, origin_lat, origin_lng, destination_lat, destination_lng, direction, status, spawned_at, expires_at, boarded_at, alighted_at`

// CreateBatch persists a spawn batch inside a single transaction so a batch
// is never half-inserted.
func (r *PassengerRepository) CreateBatch(ctx context.Context, passengers []*domain.Passenger) error {
	if len(passengers) == 0 {
		return nil
	}

	insert := func(q Querier) error {
		query := `
			INSERT INTO passengers (` + passengerColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		for _, p := range passengers {
			var depotID sql.NullString
			if p.DepotID != "" {
				depotID = sql.NullString{String: p.DepotID, Valid: true}
			}
			_, err := q.ExecContext(ctx, query,
				p.ID,
				depotID,
				p.RouteID,
				p.OriginLat,
				p.OriginLng,
				p.DestinationLat,
				p.DestinationLng,
				p.Direction,
				p.Status,
				p.SpawnedAt,
				p.ExpiresAt,
				nullTime(p.BoardedAt),
				nullTime(p.AlightedAt),
			)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if r.db == nil {
		// Already transaction-scoped.
		return insert(r.q)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insert(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a passenger by ID.
func (r *PassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE id = $1`

	p, err := scanPassenger(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves passengers matching the filter, newest spawn first.
func (r *PassengerRepository) List(ctx context.Context, filter repository.PassengerFilter) ([]*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE 1=1`
	args := []any{}

	if filter.RouteID != "" {
		args = append(args, filter.RouteID)
		query += ` AND route_id = $` + strconv.Itoa(len(args))
	}
	if filter.DepotID != "" {
		args = append(args, filter.DepotID)
		query += ` AND depot_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY spawned_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passengers []*domain.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

// ClaimForBoarding atomically transitions a WAITING passenger to ONBOARD.
// The WHERE clause is the compare-and-set: a concurrent claim or sweep that
// got there first leaves zero rows affected, and the follow-up read
// distinguishes an unknown id from a lost race.
func (r *PassengerRepository) ClaimForBoarding(ctx context.Context, id string, at time.Time) (*domain.Passenger, error) {
	query := `
		UPDATE passengers
		SET status = $2, boarded_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, id, domain.PassengerStatusOnboard, at, domain.PassengerStatusWaiting)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrAlreadyClaimed
	}

	return r.GetByID(ctx, id)
}

// CompleteAlight atomically transitions an ONBOARD passenger to COMPLETED.
func (r *PassengerRepository) CompleteAlight(ctx context.Context, id string, at time.Time) (*domain.Passenger, error) {
	query := `
		UPDATE passengers
		SET status = $2, alighted_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, id, domain.PassengerStatusCompleted, at, domain.PassengerStatusOnboard)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrNotOnboard
	}

	return r.GetByID(ctx, id)
}

// DeleteExpired hard-deletes expired WAITING passengers and returns their ids.
// The status condition re-verifies WAITING at the moment of deletion, so a
// passenger claimed mid-sweep is never removed.
func (r *PassengerRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		DELETE FROM passengers
		WHERE status = $1 AND expires_at < $2
		RETURNING id
	`

	rows, err := r.q.QueryContext(ctx, query, domain.PassengerStatusWaiting, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByStatus returns passenger counts grouped by status.
func (r *PassengerRepository) CountByStatus(ctx context.Context, routeID string) (map[domain.PassengerStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM passengers`
	args := []any{}
	if routeID != "" {
		query += ` WHERE route_id = $1`
		args = append(args, routeID)
	}
	query += ` GROUP BY status`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.PassengerStatus]int)
	for rows.Next() {
		var status domain.PassengerStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassenger(row rowScanner) (*domain.Passenger, error) {
	var p domain.Passenger
	var depotID sql.NullString
	var boardedAt, alightedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&depotID,
		&p.RouteID,
		&p.OriginLat,
		&p.OriginLng,
		&p.DestinationLat,
		&p.DestinationLng,
		&p.Direction,
		&p.Status,
		&p.SpawnedAt,
		&p.ExpiresAt,
		&boardedAt,
		&alightedAt,
	)
	if err != nil {
		return nil, err
	}

	if depotID.Valid {
		p.DepotID = depotID.String
	}
	if boardedAt.Valid {
		p.BoardedAt = boardedAt.Time
	}
	if alightedAt.Valid {
		p.AlightedAt = alightedAt.Time
	}
	return &p, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
