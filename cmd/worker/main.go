package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmesh-labs/identityhub/internal/data/db"
	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	"github.com/openmesh-labs/identityhub/internal/observability"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/realtime/bus"
	"github.com/openmesh-labs/identityhub/internal/services"
	"github.com/openmesh-labs/identityhub/internal/temporalx"
	"github.com/openmesh-labs/identityhub/internal/temporalx/temporalworker"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if stop := observability.InitTracing(context.Background(), log, "identityhub-worker"); stop != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stop(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	theDB := pg.DB()

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("temporal init failed", "error", err)
	}
	if tc == nil {
		log.Fatal("TEMPORAL_ADDRESS is required for the worker")
	}
	defer tc.Close()

	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("redis bus unavailable, realtime events disabled", "error", err)
		eventBus = nil
	}

	entities := entityrepo.NewEntityRepo(theDB, log)
	activities := entityrepo.NewActivityRepo(theDB, log)
	actions := mergerepo.NewMergeActionRepo(theDB, log)

	searchSync := services.NewSearchSyncService(log)
	notifier := services.NewNotifier(eventBus, log)

	runner, err := temporalworker.NewRunner(log, tc, entities, activities, actions, searchSync, notifier)
	if err != nil {
		log.Fatal("worker init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(ctx); err != nil {
		log.Fatal("worker start failed", "error", err)
	}

	<-ctx.Done()
	log.Info("shutting down worker")
}
