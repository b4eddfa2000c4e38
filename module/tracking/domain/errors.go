package domain

import "errors"

var (
	ErrInvalidLocation     = errors.New("invalid location")
	ErrInvalidTransition   = errors.New("invalid trip transition")
	ErrInvalidVehicleID    = errors.New("vehicle id is required")
	ErrNotFound            = errors.New("not found")
	ErrDeliveryFailure     = errors.New("delivery failure")
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrUnknownConnection   = errors.New("unknown connection")
)
