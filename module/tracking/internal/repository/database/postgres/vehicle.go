package postgres

import (
	"context"
	"database/sql"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

var (
	_ database.VehicleRepository   = (*VehicleRepo)(nil)
	_ database.RecipientRepository = (*VehicleRepo)(nil)
)

// VehicleRepo reads the fleet and route tables owned by the back office.
type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) GetAllVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT reg_no FROM vehicle WHERE reg_no <> '' ORDER BY reg_no`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.VehicleID); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// GetParentContacts returns the parent contacts of students on active routes
// served by the vehicle with the given registration number.
func (r *VehicleRepo) GetParentContacts(ctx context.Context, vehicleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT s.parent_contact FROM student s
JOIN route r ON s.route_id = r.id
JOIN vehicle v ON r.assigned_vehicle_id = v.id
WHERE v.reg_no = $1 AND r.active AND s.parent_contact IS NOT NULL AND s.parent_contact <> ''
ORDER BY s.parent_contact`,
		vehicleID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
