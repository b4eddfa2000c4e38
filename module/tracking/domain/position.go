package domain

import (
	"fmt"
	"math"
	"time"
)

type VehiclePosition struct {
	VehicleID string    `json:"vehicleId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stale reports whether the position has not been refreshed within window.
func (p VehiclePosition) Stale(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(p.UpdatedAt) > window
}

// LocationReport is a device location update after payload normalization.
type LocationReport struct {
	VehicleID string
	Latitude  float64
	Longitude float64
	Speed     *float64
}

func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidLocation, lat)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidLocation, lng)
	}
	return nil
}

// ActiveVehicle is a position as shown to admins, flagged when it has not
// been refreshed within the staleness window.
type ActiveVehicle struct {
	VehiclePosition
	Stale bool `json:"stale"`
}
