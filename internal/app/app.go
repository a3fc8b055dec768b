package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lifeapp/lifecycle-backend/internal/data/db"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

// New loads configuration, connects storage and wires every use case. Callers
// must Close the returned App.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	otelShutdown := observability.InitOTel(runCtx, log, observability.OtelConfig{
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
	})
	metrics := observability.Init(log)

	store, err := db.Open(db.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN, MaxOpenConns: cfg.DB.MaxOpenConns}, log)
	if err != nil {
		cancel()
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		cancel()
		_ = store.Close()
		log.Sync()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		cancel()
		_ = store.Close()
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(store.DB(), log)
	serviceset := wireServices(store.DB(), log, cfg, reposet, clients)

	a := &App{
		Log:          log,
		DB:           store,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		cancel:       cancel,
		otelShutdown: otelShutdown,
	}
	metrics.StartDBCollector(runCtx, log, store.DB())
	metrics.StartRedisCollector(runCtx, log, clients.Redis, cfg.Redis.Addr)
	return a, nil
}

// ServeMetrics exposes /metrics until Close. It is a no-op when metrics are disabled.
func (a *App) ServeMetrics(ctx context.Context) {
	if a == nil {
		return
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
