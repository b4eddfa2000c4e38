package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

var _ database.TripRepository = (*TripRepo)(nil)

const createTripStateTable = `CREATE TABLE IF NOT EXISTS trip_state (
	vehicle_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// The WHERE clause keeps a late write of an older status from overwriting a
// newer one when two transitions persist out of order.
const upsertTripState = `INSERT INTO trip_state (vehicle_id, status, started_at, ended_at, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (vehicle_id) DO UPDATE
SET status = EXCLUDED.status, started_at = EXCLUDED.started_at, ended_at = EXCLUDED.ended_at, updated_at = now()
WHERE (CASE trip_state.status WHEN 'IN_PROGRESS' THEN 1 WHEN 'ENDED' THEN 2 ELSE 0 END)
    < (CASE EXCLUDED.status WHEN 'IN_PROGRESS' THEN 1 WHEN 'ENDED' THEN 2 ELSE 0 END)`

type TripRepo struct {
	db *sql.DB
}

func NewTripRepo(db *sql.DB) *TripRepo {
	return &TripRepo{db: db}
}

func (r *TripRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTripStateTable); err != nil {
		return fmt.Errorf("create trip_state: %w", err)
	}
	return nil
}

func (r *TripRepo) SaveTripState(ctx context.Context, state domain.TripState) error {
	_, err := r.db.ExecContext(ctx, upsertTripState,
		state.VehicleID, string(state.Status), nullTime(state.StartedAt), nullTime(state.EndedAt),
	)
	return err
}

func (r *TripRepo) LoadTripStates(ctx context.Context) ([]domain.TripState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT vehicle_id, status, started_at, ended_at FROM trip_state ORDER BY vehicle_id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.TripState
	for rows.Next() {
		var (
			s                  domain.TripState
			status             string
			startedAt, endedAt sql.NullTime
		)
		if err := rows.Scan(&s.VehicleID, &status, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		s.Status = domain.TripStatus(status)
		s.StartedAt = timePtr(startedAt)
		s.EndedAt = timePtr(endedAt)
		results = append(results, s)
	}
	return results, rows.Err()
}

func (r *TripRepo) DeleteTripState(ctx context.Context, vehicleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trip_state WHERE vehicle_id = $1`, vehicleID)
	return err
}
