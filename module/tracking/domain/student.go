package domain

import "time"

// StudentAssignment is the bus a student rides, resolved through the
// student's active route.
type StudentAssignment struct {
	StudentID        string `json:"id"`
	Name             string `json:"name"`
	RouteName        string `json:"route"`
	VehicleID        string `json:"vehicleId"`
	EstimatedMinutes *int   `json:"estimatedMinutes,omitempty"`
}

// ParentTracking is what a parent sees for their child's bus. Location is nil
// while the bus is not reporting.
type ParentTracking struct {
	Student   StudentAssignment `json:"student"`
	Location  *ActiveVehicle    `json:"location"`
	Trip      TripState         `json:"trip"`
	Timestamp time.Time         `json:"timestamp"`
}
