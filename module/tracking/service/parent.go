package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

type latestReader interface {
	GetLatest(vehicleID string) (domain.ActiveVehicle, error)
}

type tripReader interface {
	Get(vehicleID string) domain.TripState
}

// ParentTrackingService answers "where is my child's bus" from the live store.
type ParentTrackingService struct {
	students  database.StudentRepository
	locations latestReader
	trips     tripReader
	now       func() time.Time
}

func NewParentTrackingService(students database.StudentRepository, locations latestReader, trips tripReader) *ParentTrackingService {
	return &ParentTrackingService{students: students, locations: locations, trips: trips, now: time.Now}
}

func (s *ParentTrackingService) Track(ctx context.Context, studentID string) (domain.ParentTracking, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return domain.ParentTracking{}, errors.New("student id is required")
	}

	assignment, err := s.students.GetStudentAssignment(ctx, studentID)
	if err != nil {
		return domain.ParentTracking{}, err
	}

	out := domain.ParentTracking{
		Student:   assignment,
		Trip:      s.trips.Get(assignment.VehicleID),
		Timestamp: s.now(),
	}
	vehicle, err := s.locations.GetLatest(assignment.VehicleID)
	switch {
	case err == nil:
		out.Location = &vehicle
	case !errors.Is(err, domain.ErrNotFound):
		return domain.ParentTracking{}, fmt.Errorf("latest location: %w", err)
	}
	return out, nil
}
