package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange ledger events are published to.
	DefaultExchange = "corebanking.events"

	publishContentType = "application/json"
)

// RabbitMQPublisher publishes ledger events to a RabbitMQ topic exchange as
// persistent JSON messages.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

// Compile-time assertion: *RabbitMQPublisher implements Publisher.
var _ Publisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher declares the topic exchange on a channel of the given
// connection and returns a publisher bound to it. Pass an empty exchange to
// use DefaultExchange.
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is required")
	}

	if exchange == "" {
		exchange = DefaultExchange
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()

		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQPublisher{channel: channel, exchange: exchange}, nil
}

// PublishTransactionCreated implements Publisher.
func (p *RabbitMQPublisher) PublishTransactionCreated(ctx context.Context, event TransactionCreated) error {
	return p.publish(ctx, RoutingKeyTransactionCreated, event)
}

// PublishInterestPosted implements Publisher.
func (p *RabbitMQPublisher) PublishInterestPosted(ctx context.Context, event InterestPosted) error {
	return p.publish(ctx, RoutingKeyInterestPosted, event)
}

// Close releases the underlying channel.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return nil
	}

	err := p.channel.Close()
	p.channel = nil

	return err
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return fmt.Errorf("publisher is closed")
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  publishContentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	return nil
}
