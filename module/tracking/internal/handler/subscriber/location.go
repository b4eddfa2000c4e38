package subscriber

import (
	"errors"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/service"
)

type connectionHub interface {
	Registered(connID string) bool
	OnConnect(connID string, role domain.Role, t service.Transport) error
	OnDisconnect(connID string)
}

type locationIngress interface {
	DecodeLocation(raw []byte) (domain.LocationReport, error)
	SubmitLocation(connID string, report domain.LocationReport) bool
}

// LocationSubscriber treats every bus publishing over MQTT as a device
// connection named mqtt:<vehicle id>. The broker's last-will "offline" on the
// status topic is that connection's disconnect.
type LocationSubscriber struct {
	hub     connectionHub
	ingress locationIngress
	logger  zerolog.Logger

	mu     sync.Mutex
	client mqtt.Client
}

func NewLocationSubscriber(hub connectionHub, ingress locationIngress, logger zerolog.Logger) *LocationSubscriber {
	return &LocationSubscriber{
		hub:     hub,
		ingress: ingress,
		logger:  logger.With().Str("component", "mqtt_subscriber").Logger(),
	}
}

// Start subscribes on client. It is called again after every reconnect.
func (s *LocationSubscriber) Start(client mqtt.Client) error {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	token := client.Subscribe(domain.LocationTopicPattern, 1, s.handleLocation)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	token = client.Subscribe(domain.StatusTopicPattern, 1, s.handleStatus)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	s.logger.Info().Msg("subscribed to device topics")
	return nil
}

func (s *LocationSubscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return
	}

	token := client.Unsubscribe(domain.LocationTopicPattern, domain.StatusTopicPattern)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Warn().Err(err).Msg("unsubscribe")
	}
}

func connIDFor(vehicleID string) string {
	return "mqtt:" + vehicleID
}

func (s *LocationSubscriber) handleLocation(_ mqtt.Client, msg mqtt.Message) {
	vehicleID, ok := domain.VehicleFromTopic(msg.Topic())
	if !ok {
		s.logger.Warn().Str("topic", msg.Topic()).Msg("unexpected location topic")
		return
	}

	report, err := s.ingress.DecodeLocation(msg.Payload())
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("invalid location message")
		return
	}
	if report.VehicleID != vehicleID {
		s.logger.Warn().
			Str("topic_vehicle_id", vehicleID).
			Str("payload_vehicle_id", report.VehicleID).
			Msg("vehicle id mismatch, message dropped")
		return
	}

	connID := connIDFor(vehicleID)
	s.ensureConnected(connID)
	s.ingress.SubmitLocation(connID, report)
}

func (s *LocationSubscriber) handleStatus(_ mqtt.Client, msg mqtt.Message) {
	vehicleID, ok := domain.VehicleFromTopic(msg.Topic())
	if !ok {
		s.logger.Warn().Str("topic", msg.Topic()).Msg("unexpected status topic")
		return
	}

	connID := connIDFor(vehicleID)
	switch status := strings.TrimSpace(string(msg.Payload())); status {
	case domain.StatusOffline:
		s.hub.OnDisconnect(connID)
	case domain.StatusOnline:
		s.ensureConnected(connID)
	default:
		s.logger.Debug().Str("vehicle_id", vehicleID).Str("status", status).Msg("ignoring device status")
	}
}

func (s *LocationSubscriber) ensureConnected(connID string) {
	if s.hub.Registered(connID) {
		return
	}
	err := s.hub.OnConnect(connID, domain.RoleDevice, nil)
	if err != nil && !errors.Is(err, domain.ErrDuplicateConnection) {
		s.logger.Error().Err(err).Str("conn_id", connID).Msg("register device")
	}
}
