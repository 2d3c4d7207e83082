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

const (
	shutdownTimeout = 30 * time.Second
	startupTimeout  = 30 * time.Second
)

func main() {
	log := logger.New("template-service")
	log.Info().Msg("application starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	templateApp, err := app.NewTemplateApp(startupCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize template service")
	}
	defer templateApp.Close()

	srv := server.New(":"+cfg.Server.Port, templateApp.Handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Msg("template service is ready to accept connections")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("template service exited properly")
}
