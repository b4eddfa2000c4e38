package config

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

type fakeAMQP struct{ closed bool }

func (f fakeAMQP) IsClosed() bool { return f.closed }

type fakeMQTT struct {
	mqtt.Client
	connected bool
}

func (f fakeMQTT) IsConnected() bool { return f.connected }

func serveHealth(t *testing.T, h *HealthChecker) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth_Healthy(t *testing.T) {
	h := &HealthChecker{db: fakeDB{}, amqpConn: fakeAMQP{}, mqtt: fakeMQTT{connected: true}, info: map[string]func() any{}}
	h.AddInfo("realtime", func() any { return map[string]int{"viewers": 3} })

	code, body := serveHealth(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"viewers": float64(3)}, body["realtime"])
}

func TestHealth_Unhealthy(t *testing.T) {
	h := &HealthChecker{db: fakeDB{err: errors.New("refused")}, amqpConn: fakeAMQP{closed: true}, mqtt: fakeMQTT{}, info: map[string]func() any{}}

	code, body := serveHealth(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "down", deps["postgres"].(map[string]any)["status"])
	assert.Equal(t, "down", deps["rabbitmq"].(map[string]any)["status"])
	assert.Equal(t, "down", deps["mqtt"].(map[string]any)["status"])
}
