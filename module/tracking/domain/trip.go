package domain

import "time"

type TripStatus string

const (
	TripNotStarted TripStatus = "NOT_STARTED"
	TripInProgress TripStatus = "IN_PROGRESS"
	TripEnded      TripStatus = "ENDED"
)

// Rank orders statuses along the only legal path NOT_STARTED -> IN_PROGRESS -> ENDED.
func (s TripStatus) Rank() int {
	switch s {
	case TripInProgress:
		return 1
	case TripEnded:
		return 2
	default:
		return 0
	}
}

func (s TripStatus) Valid() bool {
	return s == TripNotStarted || s == TripInProgress || s == TripEnded
}

type TripState struct {
	VehicleID string     `json:"vehicleId"`
	Status    TripStatus `json:"status"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

const (
	TripStartStarted        = "started"
	TripStartAlreadyStarted = "already_started"
)

// TripStartResult tells the caller of notify_start whether this call started the trip.
type TripStartResult struct {
	Status    string     `json:"status"`
	VehicleID string     `json:"vehicleId"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

func (r TripStartResult) Started() bool {
	return r.Status == TripStartStarted
}
