package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/data/db"
	"github.com/yungbote/mentorbridge/internal/http"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Stores   Stores
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	server       *http.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),
	})
	metrics := observability.Init(log)

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	var dbs *db.Service
	if cfg.DraftsEnabled {
		dbs, err = db.Open(log, db.ConfigFromEnv())
		if err != nil {
			clients.Close()
			log.Sync()
			return nil, fmt.Errorf("init database: %w", err)
		}
		if err := db.AutoMigrateAll(dbs.DB()); err != nil {
			_ = dbs.Close()
			clients.Close()
			log.Sync()
			return nil, fmt.Errorf("database automigrate: %w", err)
		}
	}

	storeset := wireStores(log, cfg, clients)
	var reposet Repos
	if dbs != nil {
		reposet = wireRepos(dbs.DB(), log)
	}

	serviceset, err := wireServices(log, cfg, clients, storeset, reposet)
	if err != nil {
		if dbs != nil {
			_ = dbs.Close()
		}
		clients.Close()
		log.Sync()
		return nil, err
	}

	middleware := wireMiddleware(log, cfg, serviceset)
	handlerset := wireHandlers(log, serviceset, clients, middleware)
	router := wireRouter(log, cfg, handlerset, middleware, metrics)

	return &App{
		Log:          log,
		DB:           dbs,
		Router:       router,
		Cfg:          cfg,
		Clients:      clients,
		Stores:       storeset,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start prepares the listener and launches the background loops: store
// sweeping, draft pruning and the optional metrics listener.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.server = http.NewServer(a.Router, ":"+a.Cfg.Port)

	a.Stores.startSweeper(ctx, a.Log, time.Minute)
	a.Repos.startDraftPruner(ctx, a.Log, a.Cfg.DraftRetention)
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}
}

func (a *App) Run() error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not started")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.server.Run()
}

// Shutdown drains in-flight requests, then stops background work.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var firstErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	a.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
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
	if a.Log != nil {
		a.Log.Sync()
	}
}
