package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monitoring-service/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AlertPublisher publishes alert events to RabbitMQ
type AlertPublisher struct {
	conn *Broker

	mu                sync.Mutex
	declared          bool
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewAlertPublisher(conn *Broker) *AlertPublisher {
	return &AlertPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

// PublishAlert publishes one alert event to the monitoring_alert_events queue.
// amqp channels are not safe for concurrent publishing, so calls are serialized.
func (p *AlertPublisher) PublishAlert(ctx context.Context, event AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		_, err := p.conn.Channel.QueueDeclare(
			AlertEventsQueue, // queue name
			true,             // durable
			false,            // delete when unused
			false,            // exclusive
			false,            // no-wait
			nil,              // arguments
		)
		if err != nil {
			p.failLocked()
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.declared = true
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.failLocked()
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",               // exchange
		AlertEventsQueue, // routing key (queue name)
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.AlertID.String(),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.failLocked()
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Alert event published",
		"queue", AlertEventsQueue,
		"alert_id", event.AlertID,
		"alert_type", event.AlertType,
		"severity", event.Severity,
	)
	return nil
}

func (p *AlertPublisher) failLocked() {
	p.messagesFailed++
	metrics.AlertPublishFailures.Inc()
}

// HealthCheck returns the health status of the publisher
func (p *AlertPublisher) HealthCheck() PublisherHealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PublisherHealthStatus{
		IsHealthy:         p.conn.IsOpen(),
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
		Queue:             AlertEventsQueue,
	}
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}
