// Package app wires config, logger, and every dependency into the three
// runnable units this module exposes: the ingress API, a per-channel
// worker, and the template service.
package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/auth"
	"github.com/ndidit/notifyhub/internal/broker"
	"github.com/ndidit/notifyhub/internal/circuitbreaker"
	"github.com/ndidit/notifyhub/internal/config"
	"github.com/ndidit/notifyhub/internal/handlers"
	"github.com/ndidit/notifyhub/internal/ingress"
	"github.com/ndidit/notifyhub/internal/kv"
	"github.com/ndidit/notifyhub/internal/ratelimit"
	"github.com/ndidit/notifyhub/internal/router"
	"github.com/ndidit/notifyhub/internal/userclient"
)

// IngressApp owns every resource the ingress binary must close on
// shutdown, plus the fully wired HTTP handler.
type IngressApp struct {
	KV        *kv.Store
	Publisher *broker.Publisher
	Handler   http.Handler
}

func NewIngressApp(cfg *config.Config, log zerolog.Logger) (*IngressApp, error) {
	store := kv.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)

	publisher, err := broker.Connect(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	userBreaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            "user-directory",
		Threshold:       cfg.UserBreaker.Threshold,
		Timeout:         cfg.UserBreaker.Timeout,
		RecoveryTimeout: cfg.UserBreaker.RecoveryTimeout,
	}, nil)
	users := userclient.New(cfg.UserServiceURL, userBreaker, store, cfg.TTL.UserCache, log)

	svc := ingress.New(store, publisher, users, cfg.Retry.MaxRetries, cfg.TTL.Notification, log)

	jwtVerifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	apiKeys := auth.NewAPIKeyVerifier(cfg.APIKeys)
	serviceAuth := auth.NewServiceTokenVerifier(map[string]string{
		"email-service": cfg.ServiceTokens.EmailService,
		"push-service":  cfg.ServiceTokens.PushService,
	})

	window := ratelimit.NewWindow(store.Incr, store.TTL, cfg.RateLimit.RequestsPerMinute)

	notificationHandler := handlers.NewNotificationHandler(log, svc, store)
	statusHandler := handlers.NewStatusHandler(log, store, cfg.TTL.Notification)
	healthHandler := handlers.NewHealthHandler(log, store, noopPinger{})

	registry := prometheus.NewRegistry()

	handler := router.New(router.Deps{
		Notification: notificationHandler,
		Status:       statusHandler,
		Health:       healthHandler,
		JWTVerifier:  jwtVerifier,
		APIKeys:      apiKeys,
		ServiceAuth:  serviceAuth,
		RateLimit:    window,
		Registry:     registry,
		CORSOrigins:  cfg.Server.CORSAllowedOrigins,
	})

	return &IngressApp{KV: store, Publisher: publisher, Handler: handler}, nil
}

func (a *IngressApp) Close() {
	a.Publisher.Close()
	a.KV.Close()
}

// noopPinger satisfies handlers.Pinger for the ingress binary, which has no
// direct DB dependency of its own (the DB lives behind the template
// service).
type noopPinger struct{}

func (noopPinger) Ping(ctx context.Context) error { return nil }
