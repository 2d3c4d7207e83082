// Package worker implements the per-channel consumer pipeline: parse,
// worker-side idempotency, recipient resolution, template render, provider
// send under circuit breaker and rate limit, status post, idempotency
// mark, and ack — with retry/DLQ policy on failure.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/circuitbreaker"
	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/metrics"
	"github.com/ndidit/notifyhub/internal/provider"
	"github.com/ndidit/notifyhub/internal/retry"
	"github.com/ndidit/notifyhub/internal/templateclient"
)

// Store is the subset of the KV store the pipeline depends on.
type Store interface {
	IsWorkerIdempotent(ctx context.Context, channel, requestID string) (bool, error)
	MarkWorkerIdempotent(ctx context.Context, channel, requestID string, ttl time.Duration) error
	PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error
	GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error)
}

// TemplateRenderer loads and substitutes a template, caching identical
// (code, language) pairs.
type TemplateRenderer interface {
	Render(ctx context.Context, code string, variables map[string]any, language string, version *int) (*dtos.TemplateRenderResponse, error)
}

// RecipientResolver re-fetches the channel-specific address for a user;
// push workers use this because tokens may rotate, email workers skip it
// and trust the message's resolved address.
type RecipientResolver interface {
	Recipient(ctx context.Context, userID string) (string, error)
}

// StatusPoster reports terminal delivery status back to ingress,
// best-effort: failures here are logged but never undo a delivery.
type StatusPoster interface {
	Post(ctx context.Context, update *dtos.NotificationStatusUpdate) error
}

// Republisher places a message back on the broker, either retried (same
// routing key, retry_count+1) or routed to the dead-letter queue.
type Republisher interface {
	Republish(ctx context.Context, channel string, msg *dtos.QueueMessage) error
	PublishFailed(ctx context.Context, msg *dtos.QueueMessage, reason string) error
}

// RateLimiter paces outbound sends per channel.
type RateLimiter interface {
	Wait(ctx context.Context, channel string) error
}

type Pipeline struct {
	Channel           string
	Store             Store
	Renderer          TemplateRenderer
	Recipient         RecipientResolver // nil for email
	Provider          provider.Provider
	Breaker           *circuitbreaker.Breaker
	Limiter           RateLimiter
	StatusPoster      StatusPoster
	Broker            Republisher
	RetryPolicy       retry.Policy
	DefaultLanguage   string
	IdempotencyTTL    time.Duration
	Metrics           *metrics.Metrics // nil disables metric emission
	Log               zerolog.Logger
}

// HandleDelivery is the broker.Consumer callback: it never panics, and it
// always ends in exactly one ack/nack/requeue per delivery.
func (p *Pipeline) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	var msg dtos.QueueMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		p.Log.Error().Err(err).Msg("malformed queue message, routing to DLQ")
		if err := p.Broker.PublishFailed(ctx, &msg, "malformed_envelope"); err != nil {
			p.Log.Error().Err(err).Msg("failed to publish malformed message to DLQ")
		}
		d.Ack(false)
		return
	}

	outcome := p.process(ctx, &msg)

	switch outcome.action {
	case actionAck:
		d.Ack(false)
	case actionRetryDelay:
		// Ack follows enqueue of the retry message, never precedes it.
		p.delayThenRepublish(ctx, &msg, outcome.delay)
		d.Ack(false)
	case actionDLQ:
		if err := p.Broker.PublishFailed(ctx, &msg, outcome.reason); err != nil {
			p.Log.Error().Err(err).Str("notification_id", msg.NotificationID).Msg("failed to publish to DLQ")
		}
		d.Ack(false)
	}
}

type action int

const (
	actionAck action = iota
	actionRetryDelay
	actionDLQ
)

type outcome struct {
	action action
	delay  time.Duration
	reason string
}

// process runs the pipeline for one message and decides ack/retry/DLQ. The
// broker ack is never emitted by this function directly — callers act on
// the returned outcome after it returns, so the ack always follows a known
// terminal decision.
func (p *Pipeline) process(ctx context.Context, msg *dtos.QueueMessage) outcome {
	idempotent, err := p.Store.IsWorkerIdempotent(ctx, p.Channel, msg.RequestID)
	if err != nil {
		p.Log.Warn().Err(err).Msg("idempotency check failed, proceeding")
	}
	if idempotent {
		return outcome{action: actionAck}
	}

	recipient := msg.Recipient
	if p.Recipient != nil {
		fresh, err := p.Recipient.Recipient(ctx, msg.UserID)
		if err == nil && fresh != "" {
			recipient = fresh
		}
	}
	if recipient == "" {
		p.markFailed(ctx, msg, "MissingRecipient")
		return outcome{action: actionDLQ, reason: "missing_recipient"}
	}

	language := p.DefaultLanguage
	rendered, err := p.Renderer.Render(ctx, msg.TemplateCode, msg.Variables, language, nil)
	if err != nil {
		if errors.Is(err, templateclient.ErrTemplateNotFound) {
			return p.classifyAndRoute(ctx, msg, dtos.NewFailure(dtos.KindTerminalDelivery, "TemplateNotFound", err.Error(), false))
		}
		return p.classifyAndRoute(ctx, msg, dtos.NewFailure(dtos.KindDependency, "TemplateRenderFailed", err.Error(), true))
	}

	if err := p.Limiter.Wait(ctx, p.Channel); err != nil {
		return p.classifyAndRoute(ctx, msg, dtos.NewFailure(dtos.KindDependency, "RateLimiterWaitFailed", err.Error(), true))
	}

	result, err := p.Breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return p.Provider.Send(ctx, recipient, rendered.Subject, rendered.Body, msg)
	})
	if err != nil {
		return p.classifyAndRoute(ctx, msg, dtos.AsFailure(err))
	}

	sendResp := result.(*provider.SendResponse)
	p.markDelivered(ctx, msg, sendResp.ProviderMessageID)
	if p.Metrics != nil {
		p.Metrics.ObserveDelivered(p.Channel, time.Since(msg.Timestamp))
	}

	if err := p.Store.MarkWorkerIdempotent(ctx, p.Channel, msg.RequestID, p.IdempotencyTTL); err != nil {
		p.Log.Warn().Err(err).Msg("failed to mark worker idempotency")
	}

	return outcome{action: actionAck}
}

func (p *Pipeline) classifyAndRoute(ctx context.Context, msg *dtos.QueueMessage, failure *dtos.Failure) outcome {
	if !failure.Retryable {
		p.markFailed(ctx, msg, failure.Error())
		if p.Metrics != nil {
			p.Metrics.ObserveFailed(p.Channel)
		}
		return outcome{action: actionDLQ, reason: failure.Error()}
	}

	if p.RetryPolicy.Exhausted(msg.RetryCount) {
		p.markFailed(ctx, msg, failure.Error())
		if p.Metrics != nil {
			p.Metrics.ObserveFailed(p.Channel)
		}
		return outcome{action: actionDLQ, reason: failure.Error()}
	}

	delay := p.RetryPolicy.Delay(msg.RetryCount)
	if p.Metrics != nil {
		p.Metrics.ObserveRetried(p.Channel)
	}
	return outcome{action: actionRetryDelay, delay: delay}
}

func (p *Pipeline) delayThenRepublish(ctx context.Context, msg *dtos.QueueMessage, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C

	next := *msg
	next.RetryCount++

	if err := p.Broker.Republish(ctx, p.Channel, &next); err != nil {
		p.Log.Error().Err(err).Str("notification_id", msg.NotificationID).Msg("failed to republish retry, routing to DLQ")
		p.Broker.PublishFailed(ctx, &next, "republish_failed: "+err.Error())
	}
}

func (p *Pipeline) markDelivered(ctx context.Context, msg *dtos.QueueMessage, providerMsgID string) {
	now := time.Now()
	rec := &dtos.NotificationRecord{
		NotificationID:   msg.NotificationID,
		UserID:           msg.UserID,
		NotificationType: msg.NotificationType,
		Status:           dtos.StatusDelivered,
		UpdatedAt:        now,
		CreatedAt:        msg.Timestamp,
		RequestID:        msg.RequestID,
		CorrelationID:    msg.CorrelationID,
		RetryCount:       msg.RetryCount,
		MaxRetries:       msg.MaxRetries,
		Provider:         p.Channel,
		ProviderMsgID:    providerMsgID,
	}
	if err := p.Store.PutNotificationRecord(ctx, rec, p.IdempotencyTTL); err != nil {
		p.Log.Warn().Err(err).Msg("failed to persist delivered record")
	}
	if p.StatusPoster != nil {
		if err := p.StatusPoster.Post(ctx, &dtos.NotificationStatusUpdate{
			NotificationID: msg.NotificationID,
			Status:         dtos.StatusDelivered,
			Provider:       p.Channel,
			ProviderMsgID:  providerMsgID,
		}); err != nil {
			p.Log.Warn().Err(err).Msg("status post failed, delivery outcome unaffected")
		}
	}
}

func (p *Pipeline) markFailed(ctx context.Context, msg *dtos.QueueMessage, reason string) {
	now := time.Now()
	rec := &dtos.NotificationRecord{
		NotificationID:   msg.NotificationID,
		UserID:           msg.UserID,
		NotificationType: msg.NotificationType,
		Status:           dtos.StatusFailed,
		UpdatedAt:        now,
		CreatedAt:        msg.Timestamp,
		RequestID:        msg.RequestID,
		CorrelationID:    msg.CorrelationID,
		RetryCount:       msg.RetryCount,
		MaxRetries:       msg.MaxRetries,
		Error:            reason,
		Provider:         p.Channel,
	}
	if err := p.Store.PutNotificationRecord(ctx, rec, p.IdempotencyTTL); err != nil {
		p.Log.Warn().Err(err).Msg("failed to persist failed record")
	}
	if err := p.Store.MarkWorkerIdempotent(ctx, p.Channel, msg.RequestID, p.IdempotencyTTL); err != nil {
		p.Log.Warn().Err(err).Msg("failed to mark worker idempotency on terminal failure")
	}
	if p.StatusPoster != nil {
		if err := p.StatusPoster.Post(ctx, &dtos.NotificationStatusUpdate{
			NotificationID: msg.NotificationID,
			Status:         dtos.StatusFailed,
			Error:          reason,
			Provider:       p.Channel,
		}); err != nil {
			p.Log.Warn().Err(err).Msg("status post failed, delivery outcome unaffected")
		}
	}
}
