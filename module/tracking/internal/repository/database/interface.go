package database

import (
	"context"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type TripRepository interface {
	SaveTripState(ctx context.Context, state domain.TripState) error
	LoadTripStates(ctx context.Context) ([]domain.TripState, error)
	DeleteTripState(ctx context.Context, vehicleID string) error
}

type VehicleRepository interface {
	GetAllVehicles(ctx context.Context) ([]domain.Vehicle, error)
}

// RecipientRepository resolves the parent contacts riding a vehicle's route.
type RecipientRepository interface {
	GetParentContacts(ctx context.Context, vehicleID string) ([]string, error)
}

// StudentRepository resolves which vehicle a student rides.
type StudentRepository interface {
	GetStudentAssignment(ctx context.Context, studentID string) (domain.StudentAssignment, error)
}
