package domain

// TripAlert is handed to the alert pipeline so parents on the route get notified.
type TripAlert struct {
	VehicleID  string   `json:"vehicle_id"`
	Event      string   `json:"event"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
	Timestamp  int64    `json:"timestamp"`
}
