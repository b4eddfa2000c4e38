package domain

import "strings"

// MQTT topics used by bus devices. The + segment is the vehicle id.
const (
	LocationTopicPattern = "/transport/vehicle/+/location"
	StatusTopicPattern   = "/transport/vehicle/+/status"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

func LocationTopic(vehicleID string) string {
	return strings.Replace(LocationTopicPattern, "+", vehicleID, 1)
}

func StatusTopic(vehicleID string) string {
	return strings.Replace(StatusTopicPattern, "+", vehicleID, 1)
}

// VehicleFromTopic extracts the vehicle id from /transport/vehicle/<id>/<kind>.
func VehicleFromTopic(topic string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")
	if len(parts) != 4 || parts[0] != "transport" || parts[1] != "vehicle" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
