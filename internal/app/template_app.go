package app

import (
	"context"
	"fmt"
	"net/http"

	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/config"
	"github.com/ndidit/notifyhub/internal/database"
	"github.com/ndidit/notifyhub/internal/handlers"
	customLogger "github.com/ndidit/notifyhub/internal/logger"
	"github.com/ndidit/notifyhub/internal/router"
	"github.com/ndidit/notifyhub/internal/template"
)

// migrationsPath is relative to the template-service binary's working
// directory, matching how it is invoked from the repository root.
const migrationsPath = "internal/template/migrations"

// TemplateApp owns the Postgres pool and Redis cache behind the template
// engine, plus the render-only HTTP surface.
type TemplateApp struct {
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Engine  *template.Engine
	Handler http.Handler
}

func NewTemplateApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*TemplateApp, error) {
	if err := database.Migrate(ctx, cfg.Database.DSN(), migrationsPath); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	dbCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	dbCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   pgxzero.NewLogger(customLogger.NewPgxLogger()),
		LogLevel: tracelog.LogLevelWarn,
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	engine := template.NewEngine(pool, cache, cfg.TTL.Template)

	templateHandler := handlers.NewTemplateHandler(log, engine)
	healthHandler := handlers.NewHealthHandler(log, redisPinger{cache}, pool)

	registry := prometheus.NewRegistry()

	handler := router.NewTemplateRouter(router.TemplateDeps{
		Template: templateHandler,
		Health:   healthHandler,
		Registry: registry,
	})

	return &TemplateApp{DB: pool, Cache: cache, Engine: engine, Handler: handler}, nil
}

func (a *TemplateApp) Close() {
	a.DB.Close()
	a.Cache.Close()
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }
