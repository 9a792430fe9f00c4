package app

import (
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/realtime/bus"
	"github.com/openmesh-labs/identityhub/internal/services"
	"github.com/openmesh-labs/identityhub/internal/temporalx/entitymerge"
)

type Services struct {
	Audit      services.AuditService
	Notifier   services.Notifier
	SearchSync services.SearchSyncService
	NoMerge    services.NoMergeService
	Merge      services.MergeService
	Unmerge    services.UnmergeService
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, eventBus bus.Bus, tc temporalsdkclient.Client) Services {
	log.Info("wiring services")

	auditSvc := services.NewAuditService(reposet.AuditLog, log)
	notifier := services.NewNotifier(eventBus, log)
	searchSync := services.NewSearchSyncService(log)
	dispatcher := entitymerge.NewDispatcher(tc, log)

	noMergeSvc := services.NewNoMergeService(reposet.Entity, reposet.NoMerge, auditSvc, log)
	mergeSvc := services.NewMergeService(
		db,
		reposet.Entity,
		reposet.Identity,
		reposet.Affiliation,
		reposet.Activity,
		reposet.Segment,
		reposet.MergeAction,
		auditSvc,
		dispatcher,
		notifier,
		log,
	)
	unmergeSvc := services.NewUnmergeService(
		db,
		reposet.Entity,
		reposet.Identity,
		reposet.Affiliation,
		reposet.Activity,
		reposet.Segment,
		reposet.MergeAction,
		reposet.NoMerge,
		auditSvc,
		dispatcher,
		notifier,
		log,
	)

	return Services{
		Audit:      auditSvc,
		Notifier:   notifier,
		SearchSync: searchSync,
		NoMerge:    noMergeSvc,
		Merge:      mergeSvc,
		Unmerge:    unmergeSvc,
	}
}
