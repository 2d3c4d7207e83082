package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/ndidit/notifyhub/internal/app"
	"github.com/ndidit/notifyhub/internal/config"
	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/logger"
	"github.com/ndidit/notifyhub/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := logger.New("worker-email")
	log.Info().Msg("application starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	workerApp, err := app.NewWorkerApp(cfg, string(dtos.Email), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email worker")
	}
	defer workerApp.Close()

	opsSrv := server.New(":"+cfg.Worker.OpsPort, workerApp.OpsHandler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := opsSrv.Start(); err != nil {
			log.Fatal().Err(err).Msg("ops server failed")
		}
	}()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- workerApp.Run(ctx)
	}()

	log.Info().Msg("email worker is ready, consuming queues")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, starting graceful shutdown...")
	case err := <-consumeErr:
		if err != nil {
			log.Error().Err(err).Msg("consumer loop exited")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	log.Info().Msg("email worker exited properly")
}
