package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

var _ database.StudentRepository = (*StudentRepo)(nil)

type StudentRepo struct {
	db *sql.DB
}

func NewStudentRepo(db *sql.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// GetStudentAssignment looks a student up by roll number and follows their
// active route to its assigned vehicle.
func (r *StudentRepo) GetStudentAssignment(ctx context.Context, studentID string) (domain.StudentAssignment, error) {
	var (
		a       domain.StudentAssignment
		minutes sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT s.roll_no, s.name, r.name, v.reg_no, r.estimated_time_min FROM student s
JOIN route r ON s.route_id = r.id
JOIN vehicle v ON r.assigned_vehicle_id = v.id
WHERE s.roll_no = $1 AND r.active
LIMIT 1`,
		studentID,
	).Scan(&a.StudentID, &a.Name, &a.RouteName, &a.VehicleID, &minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StudentAssignment{}, fmt.Errorf("student %s: %w", studentID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StudentAssignment{}, err
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		a.EstimatedMinutes = &m
	}
	return a, nil
}
