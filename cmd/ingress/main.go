package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/ndidit/notifyhub/internal/app"
	"github.com/ndidit/notifyhub/internal/config"
	"github.com/ndidit/notifyhub/internal/logger"
	"github.com/ndidit/notifyhub/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := logger.New("ingress")
	log.Info().Msg("application starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ingressApp, err := app.NewIngressApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ingress app")
	}
	defer ingressApp.Close()

	srv := server.New(":"+cfg.Server.Port, ingressApp.Handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Msg("ingress is ready to accept connections")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("ingress exited properly")
}
