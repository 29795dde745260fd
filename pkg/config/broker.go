package config

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Broker holds the RabbitMQ connection used for activity events
type Broker struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	log     logrus.FieldLogger
}

// InitBroker dials RabbitMQ and opens a channel
func InitBroker(url string, log logrus.FieldLogger) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error establishing connection with rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening channel for rabbitmq: %w", err)
	}
	log.Info("Successfully connected to RabbitMQ!")
	return &Broker{Conn: conn, Channel: ch, log: log}, nil
}

func (b *Broker) Close() {
	if err := b.Channel.Close(); err != nil {
		b.log.WithError(err).Error("Error closing RabbitMQ channel")
	}
	if err := b.Conn.Close(); err != nil {
		b.log.WithError(err).Error("Error closing RabbitMQ connection")
		return
	}
	b.log.Info("RabbitMQ connection closed.")
}
