package services

import (
	"fmt"

	"github.com/google/uuid"

	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/platform/apierr"
)

// NoMergeService maintains the symmetric do-not-suggest registry. A
// recorded pair suppresses future merge suggestions in either direction
// but never blocks an explicit merge request.
type NoMergeService interface {
	Add(dbc dbctx.Context, actorID *uuid.UUID, entityID, noMergeID uuid.UUID) error
	IsSuppressed(dbc dbctx.Context, a, b uuid.UUID) (bool, error)
	ListForEntity(dbc dbctx.Context, entityID uuid.UUID) ([]uuid.UUID, error)
}

type noMergeService struct {
	entities entityrepo.EntityRepo
	noMerges mergerepo.NoMergeRepo
	audit    AuditService
	log      *logger.Logger
}

func NewNoMergeService(entities entityrepo.EntityRepo, noMerges mergerepo.NoMergeRepo, audit AuditService, baseLog *logger.Logger) NoMergeService {
	return &noMergeService{
		entities: entities,
		noMerges: noMerges,
		audit:    audit,
		log:      baseLog.With("service", "NoMergeService"),
	}
}

func (s *noMergeService) Add(dbc dbctx.Context, actorID *uuid.UUID, entityID, noMergeID uuid.UUID) error {
	if entityID == noMergeID {
		return apierr.Validation("NO_MERGE_SELF", fmt.Errorf("cannot mark an entity as no-merge with itself"))
	}

	rows, err := s.entities.GetByIDs(dbc, []uuid.UUID{entityID, noMergeID})
	if err != nil {
		return apierr.Transaction("NO_MERGE_LOOKUP", err)
	}
	if len(rows) != 2 {
		return apierr.NotFound("ENTITY_NOT_FOUND", fmt.Errorf("one or both entities do not exist"))
	}

	if err := s.noMerges.Add(dbc, entityID, noMergeID); err != nil {
		return apierr.Transaction("NO_MERGE_ADD", err)
	}

	s.audit.RecordNoMerge(dbc, actorID, entityID, noMergeID)
	s.log.Info("no-merge pair recorded", "entity_id", entityID, "no_merge_id", noMergeID)
	return nil
}

func (s *noMergeService) IsSuppressed(dbc dbctx.Context, a, b uuid.UUID) (bool, error) {
	return s.noMerges.Exists(dbc, a, b)
}

func (s *noMergeService) ListForEntity(dbc dbctx.Context, entityID uuid.UUID) ([]uuid.UUID, error) {
	return s.noMerges.ListForEntity(dbc, entityID)
}
