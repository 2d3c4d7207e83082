// Package broker owns the exchange/queue layout: one direct exchange,
// five queues (per-channel standard + priority, plus a dead-letter sink),
// and the publish/consume primitives layered over it.
package broker

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "notifications"

	RoutingEmail         = "email"
	RoutingEmailPriority = "email.priority"
	RoutingPush          = "push"
	RoutingPushPriority  = "push.priority"
	RoutingFailed        = "failed"

	QueueEmail         = "email.queue"
	QueueEmailPriority = "email.priority.queue"
	QueuePush          = "push.queue"
	QueuePushPriority  = "push.priority.queue"
	QueueFailed        = "failed.queue"
)

// RoutingKey selects the routing key for a (channel, priority) pair:
// priority >= 5 routes to the channel's priority queue.
func RoutingKey(channel string, priority int) string {
	if priority >= 5 {
		return channel + ".priority"
	}
	return channel
}

type queueSpec struct {
	name       string
	routingKey string
	dlq        bool
}

var queues = []queueSpec{
	{QueueEmail, RoutingEmail, true},
	{QueueEmailPriority, RoutingEmailPriority, true},
	{QueuePush, RoutingPush, true},
	{QueuePushPriority, RoutingPushPriority, true},
	{QueueFailed, RoutingFailed, false},
}

// Declare builds the full topology against an open channel: the direct
// exchange, every queue bound to its routing key, and a dead-letter policy
// on every standard/priority queue routing to the failed queue.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	for _, q := range queues {
		args := amqp.Table{}
		if q.dlq {
			args["x-dead-letter-exchange"] = ExchangeName
			args["x-dead-letter-routing-key"] = RoutingFailed
		}

		queue, err := ch.QueueDeclare(q.name, true, false, false, false, args)
		if err != nil {
			return err
		}

		if err := ch.QueueBind(queue.Name, q.routingKey, ExchangeName, false, nil); err != nil {
			return err
		}
	}

	return nil
}
