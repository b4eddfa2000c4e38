package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
	"github.com/nandanugg/schoolbus-tracker/module/tracking/internal/repository/publisher"
)

var _ publisher.AlertPublisher = (*AlertPublisher)(nil)

const (
	ExchangeName = "transport.events"
	QueueName    = "trip_alerts"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AlertPublisher writes trip alerts to the transport.events fanout exchange,
// where the notification workers consume them from trip_alerts.
type AlertPublisher struct {
	ch  amqpPublisher
	now func() time.Time
}

func NewAlertPublisher(conn *amqp.Connection) (*AlertPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &AlertPublisher{ch: ch, now: time.Now}, nil
}

// DeclareTopology declares the exchange and the durable alert queue bound to it.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, alert *domain.TripAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now(),
		Type:         alert.Event,
		Body:         body,
	})
}
