package event

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"monitoring-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the AMQP session alert events are published on.
type Broker struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func brokerURL(cfg config.RabbitMQConfig) (string, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return "", fmt.Errorf("invalid broker port %q: %w", cfg.Port, err)
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    "/",
	}
	return uri.String(), nil
}

// ConnectBroker dials the alert broker and opens the publishing channel.
func ConnectBroker(cfg config.RabbitMQConfig) (*Broker, error) {
	url, err := brokerURL(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial alert broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open alert channel: %w", err)
	}

	slog.Info("Alert broker connected", "host", cfg.Host, "port", cfg.Port)
	return &Broker{Connection: conn, Channel: ch}, nil
}

// IsOpen reports whether alert events can still be published.
func (b *Broker) IsOpen() bool {
	return b != nil && b.Connection != nil && !b.Connection.IsClosed()
}

// Close shuts the channel before the connection. Safe on a nil or partially built broker.
func (b *Broker) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.Channel != nil {
		if err := b.Channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("alert channel: %w", err))
		}
	}
	if b.Connection != nil {
		if err := b.Connection.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("alert broker: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("Alert broker shutdown incomplete", "error", err)
		return err
	}
	slog.Info("Alert broker disconnected")
	return nil
}
