package service

import (
	"context"
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
)

type broadcaster interface {
	Broadcast(ev domain.Event)
}

type tripAlerter interface {
	NotifyTripStarted(ctx context.Context, vehicleID string)
}

// TripTracker owns the NOT_STARTED -> IN_PROGRESS -> ENDED lifecycle of every
// vehicle. A transition and its broadcast happen under the vehicle's stripe,
// so viewers see trip events in transition order. Persistence and alerting
// run after the stripe is released.
type TripTracker struct {
	stripes stripedMutex
	trips   cmap.ConcurrentMap[string, domain.TripState]
	repo    database.TripRepository
	hub     broadcaster
	alerts  tripAlerter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTripTracker builds a tracker. repo and alerts may be nil.
func NewTripTracker(repo database.TripRepository, hub broadcaster, alerts tripAlerter, logger zerolog.Logger) *TripTracker {
	return &TripTracker{
		trips:  cmap.New[domain.TripState](),
		repo:   repo,
		hub:    hub,
		alerts: alerts,
		logger: logger.With().Str("component", "trip_tracker").Logger(),
		now:    time.Now,
	}
}

// StartTrip moves the vehicle to IN_PROGRESS. started is true only for the
// one call that performed the transition; later calls get the existing state.
func (t *TripTracker) StartTrip(ctx context.Context, vehicleID string) (state domain.TripState, started bool, err error) {
	if vehicleID == "" {
		return domain.TripState{}, false, domain.ErrInvalidVehicleID
	}

	mu := t.stripes.get(vehicleID)
	mu.Lock()
	now := t.now()
	state = t.trips.Upsert(vehicleID, domain.TripState{}, func(exist bool, cur, _ domain.TripState) domain.TripState {
		if !exist {
			cur = domain.TripState{VehicleID: vehicleID, Status: domain.TripNotStarted}
		}
		if cur.Status == domain.TripNotStarted {
			ts := now
			cur.Status = domain.TripInProgress
			cur.StartedAt = &ts
			started = true
		}
		return cur
	})
	if started {
		t.hub.Broadcast(domain.Event{
			Name: domain.EventTripStarted,
			Payload: domain.TripStartedPayload{
				VehicleID: vehicleID,
				Message:   domain.TripStartedMessage,
				StartedAt: state.StartedAt,
			},
		})
	}
	mu.Unlock()

	if state.Status == domain.TripEnded {
		return state, false, fmt.Errorf("%s: trip already ended: %w", vehicleID, domain.ErrInvalidTransition)
	}
	if !started {
		return state, false, nil
	}

	t.logger.Info().Str("vehicle_id", vehicleID).Time("started_at", *state.StartedAt).Msg("trip started")
	t.persist(ctx, state)
	if t.alerts != nil {
		t.alerts.NotifyTripStarted(ctx, vehicleID)
	}
	return state, true, nil
}

// EndTrip moves an IN_PROGRESS trip to ENDED. Ending an ended trip is a no-op.
func (t *TripTracker) EndTrip(ctx context.Context, vehicleID string) (domain.TripState, error) {
	if vehicleID == "" {
		return domain.TripState{}, domain.ErrInvalidVehicleID
	}

	mu := t.stripes.get(vehicleID)
	mu.Lock()
	now := t.now()
	var ended bool
	state := t.trips.Upsert(vehicleID, domain.TripState{}, func(exist bool, cur, _ domain.TripState) domain.TripState {
		if !exist {
			cur = domain.TripState{VehicleID: vehicleID, Status: domain.TripNotStarted}
		}
		if cur.Status == domain.TripInProgress {
			ts := now
			cur.Status = domain.TripEnded
			cur.EndedAt = &ts
			ended = true
		}
		return cur
	})
	if ended {
		t.hub.Broadcast(domain.Event{
			Name: domain.EventTripEnded,
			Payload: domain.TripEndedPayload{
				VehicleID: vehicleID,
				Message:   domain.TripEndedMessage,
				EndedAt:   state.EndedAt,
			},
		})
	}
	mu.Unlock()

	if state.Status == domain.TripNotStarted {
		return state, fmt.Errorf("%s: trip not started: %w", vehicleID, domain.ErrInvalidTransition)
	}
	if !ended {
		return state, nil
	}

	t.logger.Info().Str("vehicle_id", vehicleID).Time("ended_at", *state.EndedAt).Msg("trip ended")
	t.persist(ctx, state)
	return state, nil
}

// Get returns the vehicle's trip state; unknown vehicles are NOT_STARTED.
func (t *TripTracker) Get(vehicleID string) domain.TripState {
	if state, ok := t.trips.Get(vehicleID); ok {
		return state
	}
	return domain.TripState{VehicleID: vehicleID, Status: domain.TripNotStarted}
}

// InProgress reports whether the vehicle currently has a running trip.
func (t *TripTracker) InProgress(vehicleID string) bool {
	return t.Get(vehicleID).Status == domain.TripInProgress
}

// Reset forgets the vehicle's trip so a new cycle can start.
func (t *TripTracker) Reset(ctx context.Context, vehicleID string) error {
	if vehicleID == "" {
		return domain.ErrInvalidVehicleID
	}
	mu := t.stripes.get(vehicleID)
	mu.Lock()
	t.trips.Remove(vehicleID)
	mu.Unlock()
	if t.repo != nil {
		if err := t.repo.DeleteTripState(ctx, vehicleID); err != nil {
			return fmt.Errorf("delete trip state: %w", err)
		}
	}
	t.logger.Info().Str("vehicle_id", vehicleID).Msg("trip reset")
	return nil
}

// Restore seeds the tracker from persisted states. An in-memory state that is
// already further along is kept.
func (t *TripTracker) Restore(states []domain.TripState) int {
	restored := 0
	for _, s := range states {
		if s.VehicleID == "" || !s.Status.Valid() {
			t.logger.Warn().Str("vehicle_id", s.VehicleID).Str("status", string(s.Status)).Msg("skipping invalid trip state")
			continue
		}
		t.trips.Upsert(s.VehicleID, s, func(exist bool, cur, next domain.TripState) domain.TripState {
			if exist && cur.Status.Rank() >= next.Status.Rank() {
				return cur
			}
			restored++
			return next
		})
	}
	return restored
}

// Load restores persisted trip states from the repository.
func (t *TripTracker) Load(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}
	states, err := t.repo.LoadTripStates(ctx)
	if err != nil {
		return fmt.Errorf("load trip states: %w", err)
	}
	n := t.Restore(states)
	t.logger.Info().Int("restored", n).Msg("trip states loaded")
	return nil
}

func (t *TripTracker) persist(ctx context.Context, state domain.TripState) {
	if t.repo == nil {
		return
	}
	if err := t.repo.SaveTripState(ctx, state); err != nil {
		t.logger.Error().Err(err).Str("vehicle_id", state.VehicleID).Str("status", string(state.Status)).Msg("persist trip state")
	}
}
