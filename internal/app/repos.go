package app

import (
	"gorm.io/gorm"

	auditrepo "github.com/openmesh-labs/identityhub/internal/data/repos/audit"
	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type Repos struct {
	Entity      entityrepo.EntityRepo
	Identity    entityrepo.IdentityRepo
	Affiliation entityrepo.AffiliationRepo
	Activity    entityrepo.ActivityRepo
	Segment     entityrepo.SegmentRepo
	MergeAction mergerepo.MergeActionRepo
	NoMerge     mergerepo.NoMergeRepo
	AuditLog    auditrepo.AuditLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("wiring repos")
	return Repos{
		Entity:      entityrepo.NewEntityRepo(db, log),
		Identity:    entityrepo.NewIdentityRepo(db, log),
		Affiliation: entityrepo.NewAffiliationRepo(db, log),
		Activity:    entityrepo.NewActivityRepo(db, log),
		Segment:     entityrepo.NewSegmentRepo(db, log),
		MergeAction: mergerepo.NewMergeActionRepo(db, log),
		NoMerge:     mergerepo.NewNoMergeRepo(db, log),
		AuditLog:    auditrepo.NewAuditLogRepo(db, log),
	}
}
