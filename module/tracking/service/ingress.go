package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type deviceSink interface {
	OnDeviceLocationUpdate(connID string, report domain.LocationReport) bool
}

type vehicleLookup interface {
	Known(vehicleID string) bool
}

type IngressOptions struct {
	// RequireActiveTrip drops reports from vehicles without an IN_PROGRESS trip.
	RequireActiveTrip bool
}

// devicePayload accepts both the current field names and the ones older
// driver apps send (bus_id, lat, lng).
type devicePayload struct {
	VehicleID *string  `json:"vehicleId" validate:"required,min=1,max=64"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Speed     *float64 `json:"speed" validate:"omitempty,gte=0"`

	BusID *string  `json:"bus_id" validate:"-"`
	Lat   *float64 `json:"lat" validate:"-"`
	Lng   *float64 `json:"lng" validate:"-"`
}

func (p *devicePayload) normalize() {
	if p.VehicleID == nil && p.BusID != nil {
		p.VehicleID = p.BusID
	}
	if p.Latitude == nil && p.Lat != nil {
		p.Latitude = p.Lat
	}
	if p.Longitude == nil && p.Lng != nil {
		p.Longitude = p.Lng
	}
	if p.VehicleID != nil {
		id := strings.TrimSpace(*p.VehicleID)
		p.VehicleID = &id
	}
}

// Ingress turns raw device payloads and control calls into hub and trip
// tracker operations.
type Ingress struct {
	hub      deviceSink
	trips    *TripTracker
	registry vehicleLookup
	opts     IngressOptions
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewIngress builds the adapter. registry may be nil to accept any vehicle id.
func NewIngress(hub deviceSink, trips *TripTracker, registry vehicleLookup, opts IngressOptions, logger zerolog.Logger) *Ingress {
	return &Ingress{
		hub:      hub,
		trips:    trips,
		registry: registry,
		opts:     opts,
		validate: validator.New(),
		logger:   logger.With().Str("component", "ingress").Logger(),
	}
}

// DecodeLocation parses and validates a device location payload.
func (in *Ingress) DecodeLocation(raw []byte) (domain.LocationReport, error) {
	var p devicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.LocationReport{}, fmt.Errorf("%w: decode payload: %v", domain.ErrInvalidLocation, err)
	}
	p.normalize()
	if err := in.validate.Struct(&p); err != nil {
		return domain.LocationReport{}, fmt.Errorf("%w: %s", domain.ErrInvalidLocation, describeValidation(err))
	}
	return domain.LocationReport{
		VehicleID: *p.VehicleID,
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Speed:     p.Speed,
	}, nil
}

// HandleDeviceLocation processes one location payload read from a device
// connection. Rejected payloads are logged and dropped.
func (in *Ingress) HandleDeviceLocation(connID string, raw []byte) bool {
	report, err := in.DecodeLocation(raw)
	if err != nil {
		in.logger.Warn().Err(err).Str("conn_id", connID).Msg("device payload rejected")
		return false
	}
	return in.SubmitLocation(connID, report)
}

// SubmitLocation applies the admission gates and hands report to the hub.
func (in *Ingress) SubmitLocation(connID string, report domain.LocationReport) bool {
	if in.registry != nil && !in.registry.Known(report.VehicleID) {
		in.logger.Warn().Str("conn_id", connID).Str("vehicle_id", report.VehicleID).Msg("report for unregistered vehicle dropped")
		return false
	}
	if in.opts.RequireActiveTrip && !in.trips.InProgress(report.VehicleID) {
		in.logger.Debug().Str("conn_id", connID).Str("vehicle_id", report.VehicleID).Msg("report outside an active trip dropped")
		return false
	}
	return in.hub.OnDeviceLocationUpdate(connID, report)
}

// NotifyTripStart starts the vehicle's trip. Calling it again while the trip
// is running reports already_started with the original start time.
func (in *Ingress) NotifyTripStart(ctx context.Context, vehicleID string) (domain.TripStartResult, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	state, started, err := in.trips.StartTrip(ctx, vehicleID)
	if err != nil {
		return domain.TripStartResult{}, err
	}

	result := domain.TripStartResult{
		Status:    domain.TripStartAlreadyStarted,
		VehicleID: vehicleID,
		StartedAt: state.StartedAt,
	}
	if started {
		result.Status = domain.TripStartStarted
	}
	return result, nil
}

func (in *Ingress) NotifyTripEnd(ctx context.Context, vehicleID string) (domain.TripState, error) {
	return in.trips.EndTrip(ctx, strings.TrimSpace(vehicleID))
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
