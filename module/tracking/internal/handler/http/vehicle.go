package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type locationService interface {
	GetLatest(vehicleID string) (domain.ActiveVehicle, error)
	ListActive() []domain.ActiveVehicle
}

type VehicleHandler struct {
	locationSvc locationService
}

func NewVehicleHandler(locationSvc locationService) *VehicleHandler {
	return &VehicleHandler{locationSvc: locationSvc}
}

func (h *VehicleHandler) Register(r *gin.RouterGroup) {
	r.GET("/vehicles", h.ListActiveVehicles)
	r.GET("/vehicles/:vehicle_id", h.GetLatestLocation)
}

func (h *VehicleHandler) ListActiveVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, h.locationSvc.ListActive())
}

func (h *VehicleHandler) GetLatestLocation(c *gin.Context) {
	vehicle, err := h.locationSvc.GetLatest(c.Param("vehicle_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch vehicle"})
		return
	}

	c.JSON(http.StatusOK, vehicle)
}
