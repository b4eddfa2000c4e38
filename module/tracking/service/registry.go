package service

import (
	"context"
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

// VehicleRegistry caches the fleet's registration numbers so stray device
// reports for vehicles the back office does not know can be refused.
type VehicleRegistry struct {
	repo   database.VehicleRepository
	known  cmap.ConcurrentMap[string, struct{}]
	logger zerolog.Logger
}

func NewVehicleRegistry(repo database.VehicleRepository, logger zerolog.Logger) *VehicleRegistry {
	return &VehicleRegistry{
		repo:   repo,
		known:  cmap.New[struct{}](),
		logger: logger.With().Str("component", "vehicle_registry").Logger(),
	}
}

// Refresh reloads the registry. Vehicles removed from the fleet are forgotten.
func (r *VehicleRegistry) Refresh(ctx context.Context) error {
	vehicles, err := r.repo.GetAllVehicles(ctx)
	if err != nil {
		return fmt.Errorf("load vehicles: %w", err)
	}

	fresh := make(map[string]struct{}, len(vehicles))
	for _, v := range vehicles {
		fresh[v.VehicleID] = struct{}{}
	}
	r.known.MSet(fresh)
	for _, id := range r.known.Keys() {
		if _, ok := fresh[id]; !ok {
			r.known.Remove(id)
		}
	}

	r.logger.Info().Int("vehicles", len(fresh)).Msg("vehicle registry refreshed")
	return nil
}

func (r *VehicleRegistry) Known(vehicleID string) bool {
	return r.known.Has(vehicleID)
}

func (r *VehicleRegistry) Count() int {
	return r.known.Count()
}
