package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/openmesh-labs/identityhub/internal/data/db"
	"github.com/openmesh-labs/identityhub/internal/observability"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/realtime/bus"
	"github.com/openmesh-labs/identityhub/internal/temporalx"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Router    *gin.Engine
	Cfg       Config
	Repos     Repos
	Services  Services
	Temporal  temporalsdkclient.Client
	Bus       bus.Bus
	cancel    context.CancelFunc
	traceStop func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	traceStop := observability.InitTracing(context.Background(), log, "identityhub-api")

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()
	if err := db.EnsureIndexes(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres indexes: %w", err)
	}

	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("redis bus unavailable, realtime events disabled", "error", err)
		eventBus = nil
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal: %w", err)
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, reposet, eventBus, tc)
	handlerset := wireHandlers(log, serviceset)
	mw := wireMiddleware(log, cfg)
	router := wireRouter(cfg, handlerset, mw)

	return &App{
		Log:       log,
		DB:        theDB,
		Router:    router,
		Cfg:       cfg,
		Repos:     reposet,
		Services:  serviceset,
		Temporal:  tc,
		Bus:       eventBus,
		traceStop: traceStop,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.traceStop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.traceStop(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.traceStop = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
