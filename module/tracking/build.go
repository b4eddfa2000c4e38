package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	handler "github.com/nandanugg/schoolbus-tracker/module/tracking/internal/handler/http"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/handler/subscriber"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/handler/ws"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/database/postgres"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/worker"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/service"
)

type Options struct {
	Hub     service.HubOptions
	Ingress service.IngressOptions

	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration

	StaleAfter    time.Duration
	EvictAfter    time.Duration
	SweepInterval time.Duration

	RejectUnknownVehicles bool

	AlertWorkers int
	AlertBacklog int
}

type Module struct {
	Store    *service.LocationStore
	Hub      *service.Hub
	Trips    *service.TripTracker
	Ingress  *service.Ingress
	Registry *service.VehicleRegistry

	tripRepo   *postgres.TripRepo
	alertPool  *worker.Pool
	sweeper    *service.IdleSweeper
	vehicles   *handler.VehicleHandler
	trips      *handler.TripHandler
	parents    *handler.ParentHandler
	sockets    *ws.SocketHandler
	subscriber *subscriber.LocationSubscriber
	logger     zerolog.Logger
}

func Build(db *sql.DB, amqpConn *amqp.Connection, opts Options, logger zerolog.Logger) (*Module, error) {
	tripRepo := postgres.NewTripRepo(db)
	vehicleRepo := postgres.NewVehicleRepo(db)
	studentRepo := postgres.NewStudentRepo(db)

	alertPub, err := rabbitmq.NewAlertPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("alert publisher: %w", err)
	}

	store := service.NewLocationStore()
	hub := service.NewHub(store, opts.Hub, logger)

	pool := worker.NewPool(opts.AlertWorkers, opts.AlertBacklog)
	alerts := service.NewAlertService(vehicleRepo, alertPub, pool, logger)
	trips := service.NewTripTracker(tripRepo, hub, alerts, logger)

	var registry *service.VehicleRegistry
	var ingress *service.Ingress
	if opts.RejectUnknownVehicles {
		registry = service.NewVehicleRegistry(vehicleRepo, logger)
		ingress = service.NewIngress(hub, trips, registry, opts.Ingress, logger)
	} else {
		ingress = service.NewIngress(hub, trips, nil, opts.Ingress, logger)
	}

	locations := service.NewLocationService(store, opts.StaleAfter)

	return &Module{
		Store:      store,
		Hub:        hub,
		Trips:      trips,
		Ingress:    ingress,
		Registry:   registry,
		tripRepo:   tripRepo,
		alertPool:  pool,
		sweeper:    service.NewIdleSweeper(hub, opts.SweepInterval, opts.EvictAfter, logger),
		vehicles:   handler.NewVehicleHandler(locations),
		trips:      handler.NewTripHandler(ingress, trips),
		parents:    handler.NewParentHandler(service.NewParentTrackingService(studentRepo, locations, trips)),
		sockets:    ws.NewSocketHandler(hub, ingress, ws.Options{WriteTimeout: opts.WriteTimeout}, logger),
		subscriber: subscriber.NewLocationSubscriber(hub, ingress, logger),
		logger:     logger,
	}, nil
}

// Start restores persisted trips, loads the vehicle registry and starts the
// idle sweeper.
func (m *Module) Start(ctx context.Context) error {
	if err := m.tripRepo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := m.Trips.Load(ctx); err != nil {
		return err
	}
	if m.Registry != nil {
		if err := m.Registry.Refresh(ctx); err != nil {
			return err
		}
	}
	return m.sweeper.Start()
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/transport/trip")
	m.vehicles.Register(api)
	m.trips.Register(api)
	m.parents.Register(r.Group("/api/transport/parent"))
	m.sockets.Register(r)
}

// OnMQTTConnect subscribes to device topics; pass it as the client's on-connect hook.
func (m *Module) OnMQTTConnect(client mqtt.Client) {
	if err := m.subscriber.Start(client); err != nil {
		m.logger.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

// Close stops background work and disconnects every live connection. Queued
// alerts are flushed before it returns.
func (m *Module) Close() {
	m.sweeper.Stop()
	m.subscriber.Stop()
	m.Hub.Close()
	m.alertPool.Shutdown()
}
