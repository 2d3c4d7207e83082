package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer binds a worker to its channel's standard and priority queues and
// delivers amqp.Deliveries to a handler, reconnecting with backoff if the
// connection drops.
type Consumer struct {
	url       string
	queues    []string
	prefetch  int
	log       zerolog.Logger
	conn      *amqp.Connection
	ch        *amqp.Channel
}

func NewConsumer(url string, queues []string, prefetch int, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, queues: queues, prefetch: prefetch, log: log}
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	c.conn, c.ch = conn, ch
	return nil
}

// Run blocks, delivering messages from every bound queue to handle until
// ctx is cancelled. It reconnects with exponential backoff on connection
// loss.
func (c *Consumer) Run(ctx context.Context, handle func(ctx context.Context, d amqp.Delivery)) error {
	backoffDelay := time.Second
	for {
		if err := c.connect(); err != nil {
			c.log.Error().Err(err).Dur("retry_in", backoffDelay).Msg("broker connect failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay):
			}
			if backoffDelay < 30*time.Second {
				backoffDelay *= 2
			}
			continue
		}
		backoffDelay = time.Second

		if err := c.consumeUntilClosed(ctx, handle); err != nil {
			c.log.Warn().Err(err).Msg("consumer loop ended, reconnecting")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeUntilClosed(ctx context.Context, handle func(ctx context.Context, d amqp.Delivery)) error {
	closeNotify := c.conn.NotifyClose(make(chan *amqp.Error, 1))

	deliveries := make(chan amqp.Delivery)
	for _, q := range c.queues {
		msgs, err := c.ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q, err)
		}
		go func(in <-chan amqp.Delivery) {
			for d := range in {
				deliveries <- d
			}
		}(msgs)
	}

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return nil
		case amqpErr := <-closeNotify:
			return fmt.Errorf("connection closed: %v", amqpErr)
		case d := <-deliveries:
			// Prefetch (QoS) bounds how many unacked deliveries the broker
			// hands out, so fanning each into its own goroutine gives the
			// "up to prefetch concurrent in-flight messages" model without
			// a separate semaphore.
			go handle(ctx, d)
		}
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ack/Nack helpers: thin wrappers over amqp.Delivery's single-message
// ack, drop, and requeue calls.
func Ack(d amqp.Delivery)              { d.Ack(false) }
func NackDrop(d amqp.Delivery)         { d.Nack(false, false) }
func NackRequeue(d amqp.Delivery)      { d.Nack(false, true) }
