package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type parentTracker interface {
	Track(ctx context.Context, studentID string) (domain.ParentTracking, error)
}

type ParentHandler struct {
	tracker parentTracker
}

func NewParentHandler(tracker parentTracker) *ParentHandler {
	return &ParentHandler{tracker: tracker}
}

func (h *ParentHandler) Register(r *gin.RouterGroup) {
	r.GET("/tracking/:student_id", h.GetTracking)
}

func (h *ParentHandler) GetTracking(c *gin.Context) {
	info, err := h.tracker.Track(c.Request.Context(), c.Param("student_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tracking info"})
		return
	}
	c.JSON(http.StatusOK, info)
}
