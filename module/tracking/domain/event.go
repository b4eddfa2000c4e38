package domain

import "time"

type Role string

const (
	RoleDevice Role = "device"
	RoleViewer Role = "viewer"
)

const (
	EventLocationUpdate   = "location_update"
	EventVehiclesSnapshot = "vehicles_snapshot"
	EventTripStarted      = "trip_started"
	EventTripEnded        = "trip_ended"
	EventVehicleOffline   = "vehicle_offline"

	// EventMobileLocationUpdate is the event name older driver apps still send.
	EventMobileLocationUpdate = "mobile_location_update"
)

const (
	TripStartedMessage = "Trip has started!"
	TripEndedMessage   = "Trip has ended."
)

const (
	OfflineReasonDisconnected = "disconnected"
	OfflineReasonIdle         = "idle"
)

// Event is one server-to-viewer message. Payload is JSON-encoded by the transport.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data"`
}

type TripStartedPayload struct {
	VehicleID string     `json:"vehicleId"`
	Message   string     `json:"message"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

type TripEndedPayload struct {
	VehicleID string     `json:"vehicleId"`
	Message   string     `json:"message"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type VehicleOfflinePayload struct {
	VehicleID string `json:"vehicleId"`
	Reason    string `json:"reason"`
}
