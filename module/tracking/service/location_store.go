package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

// LocationStore keeps the last accepted position of every live vehicle.
// Entries are immutable values replaced whole, so readers never observe a
// partially written position.
type LocationStore struct {
	positions cmap.ConcurrentMap[string, domain.VehiclePosition]
	now       func() time.Time
}

func NewLocationStore() *LocationStore {
	return &LocationStore{
		positions: cmap.New[domain.VehiclePosition](),
		now:       time.Now,
	}
}

// Update validates and stores a position, returning the stored snapshot.
// UpdatedAt is strictly increasing per vehicle even if the clock stalls.
func (s *LocationStore) Update(vehicleID string, lat, lng float64, speed *float64) (domain.VehiclePosition, error) {
	if vehicleID == "" {
		return domain.VehiclePosition{}, fmt.Errorf("%w: vehicle id is empty", domain.ErrInvalidLocation)
	}
	if err := domain.ValidateCoordinates(lat, lng); err != nil {
		return domain.VehiclePosition{}, err
	}

	var sp *float64
	if speed != nil {
		if math.IsNaN(*speed) || math.IsInf(*speed, 0) {
			return domain.VehiclePosition{}, fmt.Errorf("%w: speed %v is not finite", domain.ErrInvalidLocation, *speed)
		}
		v := *speed
		sp = &v
	}

	now := s.now()
	next := domain.VehiclePosition{
		VehicleID: vehicleID,
		Latitude:  lat,
		Longitude: lng,
		Speed:     sp,
	}

	stored := s.positions.Upsert(vehicleID, next, func(exist bool, current, pos domain.VehiclePosition) domain.VehiclePosition {
		pos.UpdatedAt = now
		if exist && !now.After(current.UpdatedAt) {
			pos.UpdatedAt = current.UpdatedAt.Add(time.Nanosecond)
		}
		return pos
	})
	return stored, nil
}

func (s *LocationStore) Get(vehicleID string) (domain.VehiclePosition, error) {
	pos, ok := s.positions.Get(vehicleID)
	if !ok {
		return domain.VehiclePosition{}, fmt.Errorf("vehicle %q: %w", vehicleID, domain.ErrNotFound)
	}
	return pos, nil
}

// List returns a copy of all positions ordered by vehicle id.
func (s *LocationStore) List() []domain.VehiclePosition {
	items := s.positions.Items()
	out := make([]domain.VehiclePosition, 0, len(items))
	for _, pos := range items {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (s *LocationStore) Remove(vehicleID string) {
	s.positions.Remove(vehicleID)
}

// RemoveIfIdle deletes the vehicle only if its last update is older than cutoff.
func (s *LocationStore) RemoveIfIdle(vehicleID string, cutoff time.Time) bool {
	return s.positions.RemoveCb(vehicleID, func(_ string, pos domain.VehiclePosition, exists bool) bool {
		return exists && pos.UpdatedAt.Before(cutoff)
	})
}

func (s *LocationStore) Count() int {
	return s.positions.Count()
}
