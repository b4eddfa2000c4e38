package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/worker"
)

type mockRecipientRepo struct {
	getParentContactsFn func(ctx context.Context, vehicleID string) ([]string, error)
}

func (m *mockRecipientRepo) GetParentContacts(ctx context.Context, vehicleID string) ([]string, error) {
	return m.getParentContactsFn(ctx, vehicleID)
}

type mockAlertPublisher struct {
	mu        sync.Mutex
	published []*domain.TripAlert
	publishFn func(ctx context.Context, alert *domain.TripAlert) error
}

func (m *mockAlertPublisher) PublishAlert(ctx context.Context, alert *domain.TripAlert) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, alert); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.published = append(m.published, alert)
	m.mu.Unlock()
	return nil
}

func (m *mockAlertPublisher) Published() []*domain.TripAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.TripAlert(nil), m.published...)
}

func parentsOf(contacts ...string) *mockRecipientRepo {
	return &mockRecipientRepo{
		getParentContactsFn: func(_ context.Context, _ string) ([]string, error) {
			return contacts, nil
		},
	}
}

func TestAlertService_DispatchPublishesAlert(t *testing.T) {
	pub := &mockAlertPublisher{}
	pool := worker.NewPool(1, 1)
	defer pool.Shutdown()
	svc := NewAlertService(parentsOf("+911234567890", "+919876543210"), pub, pool, zerolog.Nop())
	svc.now = fixedClock(time.Unix(1715003456, 0))

	err := svc.Dispatch(context.Background(), "BUS101")
	require.NoError(t, err)

	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "BUS101", published[0].VehicleID)
	assert.Equal(t, domain.EventTripStarted, published[0].Event)
	assert.Equal(t, domain.TripStartedMessage, published[0].Message)
	assert.Equal(t, []string{"+911234567890", "+919876543210"}, published[0].Recipients)
	assert.Equal(t, int64(1715003456), published[0].Timestamp)
}

func TestAlertService_NoRecipientsSkipsPublish(t *testing.T) {
	pub := &mockAlertPublisher{}
	pool := worker.NewPool(1, 1)
	defer pool.Shutdown()
	svc := NewAlertService(parentsOf(), pub, pool, zerolog.Nop())

	require.NoError(t, svc.Dispatch(context.Background(), "BUS101"))
	assert.Empty(t, pub.Published())
}

func TestAlertService_Errors(t *testing.T) {
	pool := worker.NewPool(1, 1)
	defer pool.Shutdown()

	lookupFails := NewAlertService(&mockRecipientRepo{
		getParentContactsFn: func(_ context.Context, _ string) ([]string, error) {
			return nil, errors.New("db down")
		},
	}, &mockAlertPublisher{}, pool, zerolog.Nop())
	assert.ErrorContains(t, lookupFails.Dispatch(context.Background(), "BUS101"), "resolve recipients")

	publishFails := NewAlertService(parentsOf("+91"), &mockAlertPublisher{
		publishFn: func(_ context.Context, _ *domain.TripAlert) error {
			return errors.New("channel closed")
		},
	}, pool, zerolog.Nop())
	assert.ErrorContains(t, publishFails.Dispatch(context.Background(), "BUS101"), "publish alert")
}

func TestAlertService_NotifyRunsAsyncAndOutlivesCallerContext(t *testing.T) {
	pub := &mockAlertPublisher{}
	pool := worker.NewPool(1, 4)
	svc := NewAlertService(parentsOf("+91"), pub, pool, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.NotifyTripStarted(ctx, "BUS101")
	cancel()
	pool.Shutdown()

	assert.Len(t, pub.Published(), 1)
}
