package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

const relinkBatchSize = 5000

// IdentityTuple narrows a relink to activities authored under specific
// identities (platform + username pairs).
type IdentityTuple struct {
	Platform string
	Username string
}

type ActivityRepo interface {
	Create(dbc dbctx.Context, rows []*types.Activity) ([]*types.Activity, error)
	CountByOwner(dbc dbctx.Context, entityID uuid.UUID) (int64, error)
	CountByOwnerAndIdentity(dbc dbctx.Context, entityID uuid.UUID, platform, username string) (int64, error)

	// RelinkOwner rewrites the owning-entity reference in bounded batches.
	// Each batch only touches rows still referencing the secondary, so a
	// partially completed relink can be re-invoked safely.
	RelinkOwner(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) (int64, error)

	// RelinkOwnerForIdentities is the filtered variant used by unmerge.
	RelinkOwnerForIdentities(dbc dbctx.Context, secondaryID, primaryID uuid.UUID, tuples []IdentityTuple) (int64, error)

	// RelinkObject rewrites the secondary-party reference of relational
	// events, same batching contract as RelinkOwner.
	RelinkObject(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) (int64, error)
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: baseLog.With("repo", "ActivityRepo")}
}

func (r *activityRepo) Create(dbc dbctx.Context, rows []*types.Activity) ([]*types.Activity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Activity{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityRepo) CountByOwner(dbc dbctx.Context, entityID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.Activity{}).
		Where("entity_id = ?", entityID).
		Count(&n).Error
	return n, err
}

func (r *activityRepo) CountByOwnerAndIdentity(dbc dbctx.Context, entityID uuid.UUID, platform, username string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.Activity{}).
		Where("entity_id = ? AND platform = ? AND username = ?", entityID, platform, username).
		Count(&n).Error
	return n, err
}

func (r *activityRepo) RelinkOwner(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) (int64, error) {
	return r.relinkBatched(dbc, "entity_id", secondaryID, primaryID, nil)
}

func (r *activityRepo) RelinkOwnerForIdentities(dbc dbctx.Context, secondaryID, primaryID uuid.UUID, tuples []IdentityTuple) (int64, error) {
	if len(tuples) == 0 {
		return 0, nil
	}
	return r.relinkBatched(dbc, "entity_id", secondaryID, primaryID, tuples)
}

func (r *activityRepo) RelinkObject(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) (int64, error) {
	return r.relinkBatched(dbc, "object_entity_id", secondaryID, primaryID, nil)
}

func (r *activityRepo) relinkBatched(dbc dbctx.Context, column string, secondaryID, primaryID uuid.UUID, tuples []IdentityTuple) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}

	var total int64
	for {
		sub := t.WithContext(dbc.Ctx).
			Model(&types.Activity{}).
			Select("id").
			Where(column+" = ?", secondaryID).
			Limit(relinkBatchSize)
		if len(tuples) > 0 {
			pairs := make([][]interface{}, 0, len(tuples))
			for _, tp := range tuples {
				pairs = append(pairs, []interface{}{tp.Platform, tp.Username})
			}
			sub = sub.Where("(platform, username) IN ?", pairs)
		}

		res := t.WithContext(dbc.Ctx).
			Model(&types.Activity{}).
			Where("id IN (?)", sub).
			Update(column, primaryID)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < relinkBatchSize {
			return total, nil
		}
	}
}
