package audit

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type AuditLogRepo interface {
	Create(dbc dbctx.Context, rows []*types.AuditLog) ([]*types.AuditLog, error)
	ListByEntity(dbc dbctx.Context, entityID uuid.UUID, limit int) ([]types.AuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) Create(dbc dbctx.Context, rows []*types.AuditLog) ([]*types.AuditLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.AuditLog{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *auditLogRepo) ListByEntity(dbc dbctx.Context, entityID uuid.UUID, limit int) ([]types.AuditLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []types.AuditLog
	if err := t.WithContext(dbc.Ctx).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
