package config

import (
	"context"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type amqpConnection interface {
	IsClosed() bool
}

type HealthChecker struct {
	db       pinger
	amqpConn amqpConnection
	mqtt     mqtt.Client
	info     map[string]func() any
}

func NewHealthChecker(db pinger, amqpConn *amqp.Connection, mqttClient mqtt.Client) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, mqtt: mqttClient, info: make(map[string]func() any)}
}

// AddInfo attaches a non-critical section, such as connection counts, to the report.
func (h *HealthChecker) AddInfo(name string, fn func() any) {
	h.info[name] = fn
}

func (h *HealthChecker) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		deps["postgres"] = gin.H{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		deps["postgres"] = gin.H{"status": "up"}
	}

	if h.amqpConn.IsClosed() {
		deps["rabbitmq"] = gin.H{"status": "down", "error": "connection closed"}
		status = http.StatusServiceUnavailable
	} else {
		deps["rabbitmq"] = gin.H{"status": "up"}
	}

	if !h.mqtt.IsConnected() {
		deps["mqtt"] = gin.H{"status": "down", "error": "not connected"}
		status = http.StatusServiceUnavailable
	} else {
		deps["mqtt"] = gin.H{"status": "up"}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	body := gin.H{
		"status":       overall,
		"dependencies": deps,
	}
	for name, fn := range h.info {
		body[name] = fn()
	}
	c.JSON(status, body)
}
