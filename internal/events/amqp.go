package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange activity events are published on.
const DefaultExchange = "lofi.activity"

// Channel is the subset of *amqp.Channel used for publishing
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes events as JSON to a RabbitMQ topic exchange
type AMQPPublisher struct {
	ch       Channel
	exchange string

	mu       sync.Mutex
	declared bool
}

// NewAMQPPublisher creates a new AMQPPublisher
func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) declare() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared {
		return nil
	}
	if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("error declaring exchange %s: %w", p.exchange, err)
	}
	p.declared = true
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if err := p.declare(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error converting event to json: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.CreatedAt,
		Body:         body,
	}
	return p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, msg)
}
