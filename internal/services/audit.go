package services

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	auditrepo "github.com/openmesh-labs/identityhub/internal/data/repos/audit"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

// AuditService records merge and unmerge outcomes. Audit writes never fail
// the operation they describe; failures are logged and swallowed.
type AuditService interface {
	RecordMerge(dbc dbctx.Context, actorID *uuid.UUID, backup types.Backup, opErr error)
	RecordUnmerge(dbc dbctx.Context, actorID *uuid.UUID, primaryID, secondaryID uuid.UUID, plan types.UnmergePlan, opErr error)
	RecordNoMerge(dbc dbctx.Context, actorID *uuid.UUID, entityID, noMergeID uuid.UUID)
}

type auditService struct {
	repo auditrepo.AuditLogRepo
	log  *logger.Logger
}

func NewAuditService(repo auditrepo.AuditLogRepo, baseLog *logger.Logger) AuditService {
	return &auditService{repo: repo, log: baseLog.With("service", "AuditService")}
}

func (s *auditService) RecordMerge(dbc dbctx.Context, actorID *uuid.UUID, backup types.Backup, opErr error) {
	row := &types.AuditLog{
		TenantID:    backup.Primary.TenantID,
		Action:      types.AuditActionEntityMerge,
		ActorID:     actorID,
		EntityID:    backup.Primary.ID,
		SecondaryID: &backup.Secondary.ID,
		OldState:    marshalOrNil(s.log, backup),
		Success:     opErr == nil,
	}
	if opErr != nil {
		row.Error = opErr.Error()
	}
	s.write(dbc, row)
}

func (s *auditService) RecordUnmerge(dbc dbctx.Context, actorID *uuid.UUID, primaryID, secondaryID uuid.UUID, plan types.UnmergePlan, opErr error) {
	row := &types.AuditLog{
		TenantID:    plan.Primary.TenantID,
		Action:      types.AuditActionEntityUnmerge,
		ActorID:     actorID,
		EntityID:    primaryID,
		SecondaryID: &secondaryID,
		NewState:    marshalOrNil(s.log, plan),
		Success:     opErr == nil,
	}
	if opErr != nil {
		row.Error = opErr.Error()
	}
	s.write(dbc, row)
}

func (s *auditService) RecordNoMerge(dbc dbctx.Context, actorID *uuid.UUID, entityID, noMergeID uuid.UUID) {
	s.write(dbc, &types.AuditLog{
		Action:      types.AuditActionNoMergeAdd,
		ActorID:     actorID,
		EntityID:    entityID,
		SecondaryID: &noMergeID,
		Success:     true,
	})
}

func (s *auditService) write(dbc dbctx.Context, row *types.AuditLog) {
	if _, err := s.repo.Create(dbc, []*types.AuditLog{row}); err != nil {
		s.log.Error("audit write failed", "action", row.Action, "entity_id", row.EntityID, "error", err)
	}
}

func marshalOrNil(log *logger.Logger, v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Error("audit payload marshal failed", "error", err)
		return nil
	}
	return datatypes.JSON(raw)
}
