package service

import (
	"time"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type positionReader interface {
	Get(vehicleID string) (domain.VehiclePosition, error)
	List() []domain.VehiclePosition
}

// LocationService serves admin reads of live positions.
type LocationService struct {
	store      positionReader
	staleAfter time.Duration
	now        func() time.Time
}

func NewLocationService(store positionReader, staleAfter time.Duration) *LocationService {
	return &LocationService{store: store, staleAfter: staleAfter, now: time.Now}
}

func (s *LocationService) GetLatest(vehicleID string) (domain.ActiveVehicle, error) {
	pos, err := s.store.Get(vehicleID)
	if err != nil {
		return domain.ActiveVehicle{}, err
	}
	return domain.ActiveVehicle{VehiclePosition: pos, Stale: pos.Stale(s.now(), s.staleAfter)}, nil
}

func (s *LocationService) ListActive() []domain.ActiveVehicle {
	now := s.now()
	positions := s.store.List()
	out := make([]domain.ActiveVehicle, 0, len(positions))
	for _, pos := range positions {
		out = append(out, domain.ActiveVehicle{VehiclePosition: pos, Stale: pos.Stale(now, s.staleAfter)})
	}
	return out
}
