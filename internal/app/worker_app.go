package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ndidit/notifyhub/internal/broker"
	"github.com/ndidit/notifyhub/internal/circuitbreaker"
	"github.com/ndidit/notifyhub/internal/config"
	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/handlers"
	"github.com/ndidit/notifyhub/internal/kv"
	"github.com/ndidit/notifyhub/internal/metrics"
	"github.com/ndidit/notifyhub/internal/provider"
	"github.com/ndidit/notifyhub/internal/ratelimit"
	"github.com/ndidit/notifyhub/internal/retry"
	"github.com/ndidit/notifyhub/internal/router"
	"github.com/ndidit/notifyhub/internal/templateclient"
	"github.com/ndidit/notifyhub/internal/userclient"
	"github.com/ndidit/notifyhub/internal/worker"
)

// WorkerApp owns one channel's consumer loop (email or push) plus the
// liveness/readiness/metrics surface its own container probes hit.
type WorkerApp struct {
	KV         *kv.Store
	Publisher  *broker.Publisher
	Consumer   *broker.Consumer
	Pipeline   *worker.Pipeline
	Metrics    *metrics.Metrics
	OpsHandler http.Handler
}

// NewWorkerApp builds the pipeline for channel ("email" or "push") and the
// consumer bound to its standard and priority queues.
func NewWorkerApp(cfg *config.Config, channel string, log zerolog.Logger) (*WorkerApp, error) {
	if channel != string(dtos.Email) && channel != string(dtos.Push) {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}

	store := kv.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)

	publisher, err := broker.Connect(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	queues := []string{channel + ".queue", channel + ".priority.queue"}
	consumer := broker.NewConsumer(cfg.RabbitMQ.URL, queues, cfg.RabbitMQ.PrefetchCount, log)

	breakerCfg := cfg.EmailBreaker
	providerName := "smtp"
	var prov provider.Provider
	if channel == string(dtos.Push) {
		breakerCfg = cfg.PushBreaker
		providerName = "fcm"
		p, err := provider.NewPushProvider(context.Background(), cfg.Provider.FCM.ProjectID, []byte(cfg.Provider.FCM.ServiceAccountJSON))
		if err != nil {
			return nil, fmt.Errorf("init push provider: %w", err)
		}
		prov = p
	} else {
		prov = provider.NewEmailProvider(provider.SMTPConfig{
			Host:     cfg.Provider.SMTP.Host,
			Port:     cfg.Provider.SMTP.Port,
			User:     cfg.Provider.SMTP.User,
			Password: cfg.Provider.SMTP.Password,
			From:     cfg.Provider.SMTP.From,
		})
	}

	registry := prometheus.NewRegistry()
	metricsReg := metrics.New(registry)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            providerName,
		Threshold:       breakerCfg.Threshold,
		Timeout:         breakerCfg.Timeout,
		RecoveryTimeout: breakerCfg.RecoveryTimeout,
	}, func(name string, from, to circuitbreaker.State) {
		metricsReg.SetBreakerState(name, int(to))
		log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	})

	limiter := ratelimit.NewChannelLimiters(map[string]float64{
		string(dtos.Email): 50,
		string(dtos.Push):  50,
	})

	statusPoster := worker.NewHTTPStatusPoster(cfg.IngressServiceURL, channel, serviceTokenFor(cfg, channel))

	var recipient worker.RecipientResolver
	if channel == string(dtos.Push) {
		userBreaker := circuitbreaker.New(circuitbreaker.Config{
			Name:            "user-directory",
			Threshold:       cfg.UserBreaker.Threshold,
			Timeout:         cfg.UserBreaker.Timeout,
			RecoveryTimeout: cfg.UserBreaker.RecoveryTimeout,
		}, nil)
		users := userclient.New(cfg.UserServiceURL, userBreaker, store, cfg.TTL.UserCache, log)
		recipient = &worker.PushRecipientResolver{Users: users}
	}

	renderer := templateclient.New(cfg.TemplateServiceURL)

	pipeline := &worker.Pipeline{
		Channel:         channel,
		Store:           store,
		Renderer:        renderer,
		Recipient:       recipient,
		Provider:        prov,
		Breaker:         breaker,
		Limiter:         limiter,
		StatusPoster:    statusPoster,
		Broker:          publisher,
		RetryPolicy:     retry.Policy{Base: cfg.Retry.BaseDelay, ExponentialBase: cfg.Retry.ExponentialBase, MaxDelay: cfg.Retry.MaxDelay, MaxRetries: cfg.Retry.MaxRetries},
		DefaultLanguage: cfg.Template.DefaultLanguage,
		IdempotencyTTL:  cfg.TTL.Idempotency,
		Metrics:         metricsReg,
		Log:             log,
	}

	healthHandler := handlers.NewHealthHandler(log, store, noopPinger{})
	opsHandler := router.NewWorkerOpsRouter(router.WorkerOpsDeps{Health: healthHandler, Registry: registry})

	return &WorkerApp{KV: store, Publisher: publisher, Consumer: consumer, Pipeline: pipeline, Metrics: metricsReg, OpsHandler: opsHandler}, nil
}

// Run blocks, consuming deliveries until ctx is cancelled.
func (a *WorkerApp) Run(ctx context.Context) error {
	return a.Consumer.Run(ctx, func(ctx context.Context, d amqp.Delivery) {
		a.Pipeline.HandleDelivery(ctx, d)
	})
}

func (a *WorkerApp) Close() {
	a.Consumer.Close()
	a.Publisher.Close()
	a.KV.Close()
}

func serviceTokenFor(cfg *config.Config, channel string) string {
	if channel == string(dtos.Push) {
		return "push-service:" + cfg.ServiceTokens.PushService
	}
	return "email-service:" + cfg.ServiceTokens.EmailService
}
