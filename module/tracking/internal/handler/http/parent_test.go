package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type mockParentTracker struct {
	trackFn func(ctx context.Context, studentID string) (domain.ParentTracking, error)
}

func (m *mockParentTracker) Track(ctx context.Context, studentID string) (domain.ParentTracking, error) {
	return m.trackFn(ctx, studentID)
}

func setupParentRouter(tracker parentTracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewParentHandler(tracker).Register(r.Group(""))
	return r
}

func TestGetTracking_Success(t *testing.T) {
	tracker := &mockParentTracker{
		trackFn: func(_ context.Context, studentID string) (domain.ParentTracking, error) {
			if studentID != "STU12345" {
				t.Fatalf("unexpected studentID: %s", studentID)
			}
			return domain.ParentTracking{
				Student:  domain.StudentAssignment{StudentID: studentID, VehicleID: "BUS101"},
				Location: &domain.ActiveVehicle{VehiclePosition: domain.VehiclePosition{VehicleID: "BUS101", Latitude: 17.42}},
				Trip:     domain.TripState{VehicleID: "BUS101", Status: domain.TripInProgress},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/tracking/STU12345", nil)
	setupParentRouter(tracker).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Student  map[string]any `json:"student"`
		Location map[string]any `json:"location"`
		Trip     map[string]any `json:"trip"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Student["vehicleId"] != "BUS101" || resp.Location["latitude"] != 17.42 {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestGetTracking_NotFound(t *testing.T) {
	tracker := &mockParentTracker{
		trackFn: func(_ context.Context, studentID string) (domain.ParentTracking, error) {
			return domain.ParentTracking{}, fmt.Errorf("student %s: %w", studentID, domain.ErrNotFound)
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/tracking/STU00000", nil)
	setupParentRouter(tracker).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetTracking_InternalError(t *testing.T) {
	tracker := &mockParentTracker{
		trackFn: func(_ context.Context, _ string) (domain.ParentTracking, error) {
			return domain.ParentTracking{}, errors.New("db down")
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/tracking/STU12345", nil)
	setupParentRouter(tracker).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
