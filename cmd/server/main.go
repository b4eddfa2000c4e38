package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/schoolbus-tracker/config"
	"github.com/nandanugg/schoolbus-tracker/module/tracking"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgres(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbitmq")
	}
	defer func() { _ = amqpConn.Close() }()

	trackingModule, err := tracking.Build(db, amqpConn, tracking.Options{
		Hub: service.HubOptions{
			QueueSize: cfg.QueueSize,
			Overflow:  service.OverflowPolicy(cfg.OverflowPolicy),
			Offline:   service.OfflinePolicy(cfg.OfflinePolicy),
		},
		Ingress:               service.IngressOptions{RequireActiveTrip: cfg.RequireActiveTrip},
		WriteTimeout:          cfg.WriteTimeout,
		StaleAfter:            cfg.StaleAfter,
		EvictAfter:            cfg.EvictAfter,
		SweepInterval:         cfg.SweepInterval,
		RejectUnknownVehicles: cfg.RejectUnknownVehicles,
		AlertWorkers:          cfg.AlertWorkers,
		AlertBacklog:          cfg.AlertBacklog,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracking module")
	}
	defer trackingModule.Close()

	if err := trackingModule.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start tracking module")
	}

	mqttClient, err := config.NewMQTT(cfg, logger, trackingModule.OnMQTTConnect)
	if err != nil {
		logger.Fatal().Err(err).Msg("mqtt")
	}
	defer mqttClient.Disconnect(250)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	health := config.NewHealthChecker(db, amqpConn, mqttClient)
	health.AddInfo("realtime", func() any { return trackingModule.Hub.Stats() })
	health.Register(r)

	trackingModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		trackingModule.Hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server")
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error().Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
