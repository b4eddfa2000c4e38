package subscriber

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/service"
)

type mockHub struct {
	live         map[string]bool
	connected    map[string]int
	disconnected []string
}

func newMockHub() *mockHub {
	return &mockHub{live: make(map[string]bool), connected: make(map[string]int)}
}

func (m *mockHub) Registered(connID string) bool { return m.live[connID] }

func (m *mockHub) OnConnect(connID string, _ domain.Role, _ service.Transport) error {
	m.connected[connID]++
	if m.live[connID] {
		return domain.ErrDuplicateConnection
	}
	m.live[connID] = true
	return nil
}

func (m *mockHub) OnDisconnect(connID string) {
	delete(m.live, connID)
	m.disconnected = append(m.disconnected, connID)
}

type mockIngress struct {
	decodeFn  func(raw []byte) (domain.LocationReport, error)
	submitted []string
}

func (m *mockIngress) DecodeLocation(raw []byte) (domain.LocationReport, error) {
	return m.decodeFn(raw)
}

func (m *mockIngress) SubmitLocation(connID string, _ domain.LocationReport) bool {
	m.submitted = append(m.submitted, connID)
	return true
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 0 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return f.topic }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

func decodesAs(vehicleID string) *mockIngress {
	return &mockIngress{
		decodeFn: func(_ []byte) (domain.LocationReport, error) {
			return domain.LocationReport{VehicleID: vehicleID, Latitude: 17.42, Longitude: 78.47}, nil
		},
	}
}

func TestHandleLocation_Success(t *testing.T) {
	hub := newMockHub()
	in := decodesAs("BUS101")
	sub := NewLocationSubscriber(hub, in, zerolog.Nop())

	msg := &fakeMQTTMessage{topic: domain.LocationTopic("BUS101"), payload: []byte(`{}`)}
	sub.handleLocation(nil, msg)
	sub.handleLocation(nil, msg)

	if len(in.submitted) != 2 || in.submitted[0] != "mqtt:BUS101" {
		t.Fatalf("expected two submissions for mqtt:BUS101, got %v", in.submitted)
	}
	if hub.connected["mqtt:BUS101"] != 1 {
		t.Errorf("expected a single registration, got %d", hub.connected["mqtt:BUS101"])
	}
}

func TestHandleLocation_ReRegistersAfterOffline(t *testing.T) {
	hub := newMockHub()
	in := decodesAs("BUS101")
	sub := NewLocationSubscriber(hub, in, zerolog.Nop())
	msg := &fakeMQTTMessage{topic: domain.LocationTopic("BUS101"), payload: []byte(`{}`)}

	sub.handleLocation(nil, msg)
	sub.handleStatus(nil, &fakeMQTTMessage{topic: domain.StatusTopic("BUS101"), payload: []byte("offline")})
	sub.handleLocation(nil, msg)

	if hub.connected["mqtt:BUS101"] != 2 {
		t.Fatalf("expected registration after reconnect, got %d", hub.connected["mqtt:BUS101"])
	}
	if !hub.live["mqtt:BUS101"] {
		t.Error("device should be live again")
	}
}

func TestHandleLocation_InvalidPayload(t *testing.T) {
	in := &mockIngress{
		decodeFn: func(_ []byte) (domain.LocationReport, error) {
			return domain.LocationReport{}, errors.New("invalid")
		},
	}
	hub := newMockHub()
	sub := NewLocationSubscriber(hub, in, zerolog.Nop())

	sub.handleLocation(nil, &fakeMQTTMessage{topic: domain.LocationTopic("BUS101"), payload: []byte("invalid")})

	if len(in.submitted) != 0 {
		t.Fatal("SubmitLocation should not be called")
	}
	if len(hub.connected) != 0 {
		t.Error("invalid payload should not register a device")
	}
}

func TestHandleLocation_VehicleMismatch(t *testing.T) {
	in := decodesAs("BUS999")
	sub := NewLocationSubscriber(newMockHub(), in, zerolog.Nop())

	sub.handleLocation(nil, &fakeMQTTMessage{topic: domain.LocationTopic("BUS101"), payload: []byte(`{}`)})

	if len(in.submitted) != 0 {
		t.Fatal("mismatched vehicle id should be dropped")
	}
}

func TestHandleLocation_BadTopic(t *testing.T) {
	in := decodesAs("BUS101")
	sub := NewLocationSubscriber(newMockHub(), in, zerolog.Nop())

	sub.handleLocation(nil, &fakeMQTTMessage{topic: "/fleet/BUS101", payload: []byte(`{}`)})

	if len(in.submitted) != 0 {
		t.Fatal("unexpected topic should be dropped")
	}
}

func TestHandleStatus(t *testing.T) {
	hub := newMockHub()
	sub := NewLocationSubscriber(hub, decodesAs("BUS101"), zerolog.Nop())

	sub.handleStatus(nil, &fakeMQTTMessage{topic: domain.StatusTopic("BUS101"), payload: []byte("online")})
	sub.handleStatus(nil, &fakeMQTTMessage{topic: domain.StatusTopic("BUS101"), payload: []byte("offline\n")})
	sub.handleStatus(nil, &fakeMQTTMessage{topic: domain.StatusTopic("BUS101"), payload: []byte("rebooting")})

	if hub.connected["mqtt:BUS101"] != 1 {
		t.Errorf("expected one connect, got %d", hub.connected["mqtt:BUS101"])
	}
	if len(hub.disconnected) != 1 || hub.disconnected[0] != "mqtt:BUS101" {
		t.Errorf("expected one disconnect for mqtt:BUS101, got %v", hub.disconnected)
	}
}

func TestVehicleFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"/transport/vehicle/BUS101/location", "BUS101", true},
		{"/transport/vehicle/BUS101/status", "BUS101", true},
		{"transport/vehicle/BUS101/location", "BUS101", true},
		{"/transport/vehicle//location", "", false},
		{"/fleet/vehicle/BUS101/location", "", false},
		{"/transport/vehicle/BUS101", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := domain.VehicleFromTopic(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("VehicleFromTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
