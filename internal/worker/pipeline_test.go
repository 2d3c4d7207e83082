package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/circuitbreaker"
	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/provider"
	"github.com/ndidit/notifyhub/internal/retry"
	"github.com/ndidit/notifyhub/internal/templateclient"
)

type fakeStore struct {
	mu         sync.Mutex
	idempotent map[string]bool
	records    map[string]*dtos.NotificationRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{idempotent: map[string]bool{}, records: map[string]*dtos.NotificationRecord{}}
}

func (f *fakeStore) IsWorkerIdempotent(ctx context.Context, channel, requestID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idempotent[channel+":"+requestID], nil
}

func (f *fakeStore) MarkWorkerIdempotent(ctx context.Context, channel, requestID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotent[channel+":"+requestID] = true
	return nil
}

func (f *fakeStore) PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.NotificationID] = rec
	return nil
}

func (f *fakeStore) GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id], nil
}

type fakeRenderer struct {
	body string
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, code string, variables map[string]any, language string, version *int) (*dtos.TemplateRenderResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dtos.TemplateRenderResponse{Subject: "sub", Body: f.body, Language: language, Version: 1, RenderedAt: time.Now()}, nil
}

type fakeLimiter struct{}

func (fakeLimiter) Wait(ctx context.Context, channel string) error { return nil }

type fakeBroker struct {
	mu            sync.Mutex
	republished   []*dtos.QueueMessage
	failed        []*dtos.QueueMessage
	failedReasons []string
}

func (f *fakeBroker) Republish(ctx context.Context, channel string, msg *dtos.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.republished = append(f.republished, msg)
	return nil
}

func (f *fakeBroker) PublishFailed(ctx context.Context, msg *dtos.QueueMessage, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, msg)
	f.failedReasons = append(f.failedReasons, reason)
	return nil
}

// flakyProvider fails the first N sends with a retryable error, then
// succeeds.
type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Send(ctx context.Context, recipient, subject, body string, msg *dtos.QueueMessage) (*provider.SendResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "ProviderUnavailable", "boom", true)
	}
	return &provider.SendResponse{ProviderMessageID: "msg-1"}, nil
}

type terminalProvider struct{}

func (terminalProvider) Send(ctx context.Context, recipient, subject, body string, msg *dtos.QueueMessage) (*provider.SendResponse, error) {
	return nil, dtos.NewFailure(dtos.KindTerminalDelivery, "InvalidRecipient", "bad token", false)
}

func newPipeline(store *fakeStore, prov provider.Provider, brk *fakeBroker) *Pipeline {
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "test", Threshold: 100, RecoveryTimeout: time.Second}, nil)
	return &Pipeline{
		Channel:         "email",
		Store:           store,
		Renderer:        &fakeRenderer{body: "hi"},
		Provider:        prov,
		Breaker:         breaker,
		Limiter:         fakeLimiter{},
		Broker:          brk,
		RetryPolicy:     retry.Policy{Base: time.Millisecond, ExponentialBase: 2, MaxDelay: 5 * time.Millisecond, MaxRetries: 3},
		DefaultLanguage: "en",
		IdempotencyTTL:  time.Hour,
		Log:             zerolog.Nop(),
	}
}

func TestProcessDeliversAfterRetryableFailures(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	prov := &flakyProvider{failures: 2}
	p := newPipeline(store, prov, brk)

	msg := &dtos.QueueMessage{NotificationID: "n1", RequestID: "r1", Recipient: "a@b", Timestamp: time.Now()}
	var o outcome
	for attempt := 0; attempt <= p.RetryPolicy.MaxRetries; attempt++ {
		o = p.process(context.Background(), msg)
		if o.action != actionRetryDelay {
			break
		}
		msg.RetryCount++
	}
	if prov.calls != 3 {
		t.Fatalf("expected two failed sends then one success, got %d calls", prov.calls)
	}
	if o.action != actionAck {
		t.Fatalf("expected ack, got %v", o.action)
	}
	if len(brk.failed) != 0 {
		t.Fatalf("expected no DLQ entries, got %d", len(brk.failed))
	}
	if store.records["n1"].Status != dtos.StatusDelivered {
		t.Fatalf("expected delivered status, got %v", store.records["n1"].Status)
	}
}

func TestProcessTerminalFailureRoutesToDLQ(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	p := newPipeline(store, terminalProvider{}, brk)

	msg := &dtos.QueueMessage{NotificationID: "n2", RequestID: "r2", Recipient: "tok", Timestamp: time.Now()}
	o := p.process(context.Background(), msg)
	if o.action != actionDLQ {
		t.Fatalf("expected DLQ routing, got %v", o.action)
	}
	if store.records["n2"].Status != dtos.StatusFailed {
		t.Fatalf("expected failed status, got %v", store.records["n2"].Status)
	}
}

func TestProcessRetryExhaustionRoutesToDLQ(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	p := newPipeline(store, &flakyProvider{failures: 999}, brk)

	msg := &dtos.QueueMessage{NotificationID: "n3", RequestID: "r3", Recipient: "a@b", Timestamp: time.Now(), RetryCount: 3}
	o := p.process(context.Background(), msg)
	if o.action != actionDLQ {
		t.Fatalf("expected DLQ routing at retry budget exhaustion, got %v", o.action)
	}
}

func TestProcessTemplateNotFoundRoutesToDLQWithoutRetry(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	p := newPipeline(store, &flakyProvider{failures: 0}, brk)
	p.Renderer = &fakeRenderer{err: templateclient.ErrTemplateNotFound}

	msg := &dtos.QueueMessage{NotificationID: "n5", RequestID: "r5", Recipient: "a@b", Timestamp: time.Now()}
	o := p.process(context.Background(), msg)

	if o.action != actionDLQ {
		t.Fatalf("expected immediate DLQ routing for missing template, got %v", o.action)
	}
	if store.records["n5"].Status != dtos.StatusFailed {
		t.Fatalf("expected failed status, got %v", store.records["n5"].Status)
	}
}

func TestHandleDeliveryRoutesMalformedEnvelopeToDLQ(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	p := newPipeline(store, &flakyProvider{failures: 0}, brk)

	d := amqp.Delivery{Body: []byte("not json")}
	p.HandleDelivery(context.Background(), d)

	if len(brk.failed) != 1 {
		t.Fatalf("expected exactly one DLQ publish, got %d", len(brk.failed))
	}
	if brk.failedReasons[0] != "malformed_envelope" {
		t.Fatalf("expected malformed_envelope reason, got %q", brk.failedReasons[0])
	}
}

func TestDelayThenRepublishIncrementsRetryCount(t *testing.T) {
	store := newFakeStore()
	brk := &fakeBroker{}
	p := newPipeline(store, &flakyProvider{failures: 999}, brk)

	msg := &dtos.QueueMessage{NotificationID: "n4", RequestID: "r4", Recipient: "a@b", Timestamp: time.Now(), RetryCount: 0}
	p.delayThenRepublish(context.Background(), msg, time.Millisecond)

	if len(brk.republished) != 1 {
		t.Fatalf("expected exactly one republish, got %d", len(brk.republished))
	}
	if brk.republished[0].RetryCount != 1 {
		t.Fatalf("expected retry_count incremented to 1, got %d", brk.republished[0].RetryCount)
	}
}
