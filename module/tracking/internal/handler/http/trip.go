package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type tripService interface {
	NotifyTripStart(ctx context.Context, vehicleID string) (domain.TripStartResult, error)
	NotifyTripEnd(ctx context.Context, vehicleID string) (domain.TripState, error)
}

type tripStateService interface {
	Get(vehicleID string) domain.TripState
	Reset(ctx context.Context, vehicleID string) error
}

type TripHandler struct {
	ingress tripService
	trips   tripStateService
}

func NewTripHandler(ingress tripService, trips tripStateService) *TripHandler {
	return &TripHandler{ingress: ingress, trips: trips}
}

func (h *TripHandler) Register(r *gin.RouterGroup) {
	r.POST("/notify_start", h.NotifyStart)
	r.POST("/notify_end", h.NotifyEnd)
	r.POST("/:vehicle_id/start", h.NotifyStart)
	r.POST("/:vehicle_id/end", h.NotifyEnd)
	r.GET("/trips/:vehicle_id", h.GetTrip)
	r.DELETE("/trips/:vehicle_id", h.ResetTrip)
}

// vehicleIDFrom reads the vehicle id from the path, then the vehicle_id
// query parameter, then the bus_id one older clients send.
func vehicleIDFrom(c *gin.Context) string {
	for _, v := range []string{c.Param("vehicle_id"), c.Query("vehicle_id"), c.Query("bus_id")} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h *TripHandler) NotifyStart(c *gin.Context) {
	result, err := h.ingress.NotifyTripStart(c.Request.Context(), vehicleIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TripHandler) NotifyEnd(c *gin.Context) {
	state, err := h.ingress.NotifyTripEnd(c.Request.Context(), vehicleIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	c.JSON(http.StatusOK, h.trips.Get(c.Param("vehicle_id")))
}

func (h *TripHandler) ResetTrip(c *gin.Context) {
	if err := h.trips.Reset(c.Request.Context(), c.Param("vehicle_id")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidVehicleID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "vehicle_id is required"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
