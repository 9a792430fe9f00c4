package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type IdentityRepo interface {
	Create(dbc dbctx.Context, rows []*types.Identity) ([]*types.Identity, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Identity, error)
	ListByEntityIDs(dbc dbctx.Context, entityIDs []uuid.UUID) ([]types.Identity, error)
	FindOwned(dbc dbctx.Context, entityID uuid.UUID, platform, identityType, value string) (*types.Identity, error)

	// MoveToEntity re-points the given tuples from one entity to another,
	// preserving verified flags and creation metadata.
	MoveToEntity(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID, tuples []types.Identity) error

	// UpgradeVerified handles the duplicate-tuple case: the value already
	// exists on the target entity unverified, and the source copy is
	// verified. The source row is demoted first because at most one
	// verified row may exist per tenant-wide tuple, then the target copy
	// is flipped to verified. The demoted row stays on its entity; no
	// identity row is ever deleted.
	UpgradeVerified(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID, tuples []types.Identity) error

	// SetVerified flips the verified flag on an owned tuple. Used when a
	// ledger backup is replayed and flags must return to their pre-merge
	// values.
	SetVerified(dbc dbctx.Context, entityID uuid.UUID, tuple types.Identity, verified bool) error
}

type identityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdentityRepo(db *gorm.DB, baseLog *logger.Logger) IdentityRepo {
	return &identityRepo{db: db, log: baseLog.With("repo", "IdentityRepo")}
}

func (r *identityRepo) Create(dbc dbctx.Context, rows []*types.Identity) ([]*types.Identity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Identity{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *identityRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Identity, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Identity
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *identityRepo) ListByEntityIDs(dbc dbctx.Context, entityIDs []uuid.UUID) ([]types.Identity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []types.Identity
	if len(entityIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("entity_id IN ?", entityIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *identityRepo) FindOwned(dbc dbctx.Context, entityID uuid.UUID, platform, identityType, value string) (*types.Identity, error) {
	if entityID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Identity
	q := t.WithContext(dbc.Ctx).Where("entity_id = ? AND platform = ? AND value = ?", entityID, platform, value)
	if identityType != "" {
		q = q.Where("type = ?", identityType)
	}
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *identityRepo) MoveToEntity(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID, tuples []types.Identity) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	for _, i := range tuples {
		if err := t.WithContext(dbc.Ctx).
			Model(&types.Identity{}).
			Where("entity_id = ? AND platform = ? AND type = ? AND value = ?", fromEntityID, i.Platform, i.Type, i.Value).
			Update("entity_id", toEntityID).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *identityRepo) SetVerified(dbc dbctx.Context, entityID uuid.UUID, tuple types.Identity, verified bool) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Identity{}).
		Where("entity_id = ? AND platform = ? AND type = ? AND value = ?", entityID, tuple.Platform, tuple.Type, tuple.Value).
		Update("verified", verified).Error
}

func (r *identityRepo) UpgradeVerified(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID, tuples []types.Identity) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	for _, i := range tuples {
		if err := t.WithContext(dbc.Ctx).
			Model(&types.Identity{}).
			Where("entity_id = ? AND platform = ? AND type = ? AND value = ?", fromEntityID, i.Platform, i.Type, i.Value).
			Update("verified", false).Error; err != nil {
			return err
		}
		if err := t.WithContext(dbc.Ctx).
			Model(&types.Identity{}).
			Where("entity_id = ? AND platform = ? AND type = ? AND value = ?", toEntityID, i.Platform, i.Type, i.Value).
			Update("verified", true).Error; err != nil {
			return err
		}
	}
	return nil
}
