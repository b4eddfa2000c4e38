package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/publisher"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/worker"
)

const defaultAlertTimeout = 10 * time.Second

// AlertService hands trip-start alerts for the parents on a route to the
// messaging pipeline. Dispatch runs on a worker pool so the caller never
// waits for it; failures are only logged.
type AlertService struct {
	recipients database.RecipientRepository
	publisher  publisher.AlertPublisher
	pool       *worker.Pool
	timeout    time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewAlertService(recipients database.RecipientRepository, pub publisher.AlertPublisher, pool *worker.Pool, logger zerolog.Logger) *AlertService {
	return &AlertService{
		recipients: recipients,
		publisher:  pub,
		pool:       pool,
		timeout:    defaultAlertTimeout,
		logger:     logger.With().Str("component", "alerts").Logger(),
		now:        time.Now,
	}
}

func (s *AlertService) NotifyTripStarted(ctx context.Context, vehicleID string) {
	ctx = context.WithoutCancel(ctx)
	accepted := s.pool.Submit(func() {
		if err := s.Dispatch(ctx, vehicleID); err != nil {
			s.logger.Error().Err(err).Str("vehicle_id", vehicleID).Msg("trip alert failed")
		}
	})
	if !accepted {
		s.logger.Error().Str("vehicle_id", vehicleID).Msg("trip alert dropped: dispatch queue full")
	}
}

// Dispatch resolves recipients and publishes one alert synchronously.
func (s *AlertService) Dispatch(ctx context.Context, vehicleID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var recipients []string
	if s.recipients != nil {
		var err error
		recipients, err = s.recipients.GetParentContacts(ctx, vehicleID)
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
	}
	if len(recipients) == 0 {
		s.logger.Info().Str("vehicle_id", vehicleID).Msg("no parents to alert")
		return nil
	}

	alert := &domain.TripAlert{
		VehicleID:  vehicleID,
		Event:      domain.EventTripStarted,
		Message:    domain.TripStartedMessage,
		Recipients: recipients,
		Timestamp:  s.now().Unix(),
	}
	if err := s.publisher.PublishAlert(ctx, alert); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	s.logger.Info().Str("vehicle_id", vehicleID).Int("recipients", len(recipients)).Msg("trip alert published")
	return nil
}
