package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// Publisher is a single-writer-per-channel connection wrapper used by
// ingress (to publish QueueMessages) and by workers (to republish retries
// and route to the dead-letter queue).
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

func Connect(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish sends a QueueMessage with the routing key selected from the
// channel and priority, persistent delivery, and a priority header.
func (p *Publisher) Publish(ctx context.Context, msg *dtos.QueueMessage) error {
	routingKey := RoutingKey(string(msg.NotificationType), msg.Priority)
	return p.publishRaw(ctx, routingKey, msg, msg.Priority)
}

// Republish places msg back on its originating routing key after a retry
// delay, with RetryCount already incremented by the caller.
func (p *Publisher) Republish(ctx context.Context, channel string, msg *dtos.QueueMessage) error {
	routingKey := RoutingKey(channel, msg.Priority)
	return p.publishRaw(ctx, routingKey, msg, msg.Priority)
}

// PublishFailed routes msg to the dead-letter queue directly, carrying the
// failure reason in the message headers.
func (p *Publisher) PublishFailed(ctx context.Context, msg *dtos.QueueMessage, reason string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal failed message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, ExchangeName, RoutingFailed, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers: amqp.Table{
			"failure_reason": reason,
			"channel":        string(msg.NotificationType),
		},
	})
}

func (p *Publisher) publishRaw(ctx context.Context, routingKey string, msg *dtos.QueueMessage, priority int) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pri := uint8(0)
	if priority >= 0 && priority <= 10 {
		pri = uint8(priority)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     pri,
		Headers: amqp.Table{
			"channel":  string(msg.NotificationType),
			"priority": msg.Priority,
		},
		Body: body,
	})
}
