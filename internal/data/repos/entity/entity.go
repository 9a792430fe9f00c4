package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type EntityRepo interface {
	Create(dbc dbctx.Context, rows []*types.Entity) ([]*types.Entity, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Entity, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Entity, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error

	// Revive writes the given state over an existing row, clearing any
	// soft delete, or creates the row when the id is unknown. Splitting an
	// entity back out reuses the retired shell this way.
	Revive(dbc dbctx.Context, e *types.Entity) error
}

type entityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger) EntityRepo {
	return &entityRepo{db: db, log: baseLog.With("repo", "EntityRepo")}
}

func (r *entityRepo) Create(dbc dbctx.Context, rows []*types.Entity) ([]*types.Entity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Entity{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *entityRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Entity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Entity
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Entity, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *entityRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Entity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *entityRepo) Revive(dbc dbctx.Context, e *types.Entity) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if e == nil || e.ID == uuid.Nil {
		return nil
	}
	res := t.WithContext(dbc.Ctx).
		Unscoped().
		Model(&types.Entity{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"tenant_id":        e.TenantID,
			"kind":             e.Kind,
			"display_name":     e.DisplayName,
			"attributes":       e.Attributes,
			"emails":           e.Emails,
			"score":            e.Score,
			"reach":            e.Reach,
			"joined_at":        e.JoinedAt,
			"manually_created": e.ManuallyCreated,
			"deleted_at":       nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(e).Error
}

func (r *entityRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Entity{}).Error
}
