package domain

type Vehicle struct {
	VehicleID string `json:"vehicleId"`
}
