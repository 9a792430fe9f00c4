package merge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type MergeActionRepo interface {
	// Add inserts a ledger row after checking no non-terminal row exists
	// for the unordered pair. The check races with concurrent inserts by
	// design; the partial unique index turns a lost race into a constraint
	// violation the caller surfaces as a conflict.
	Add(dbc dbctx.Context, row *types.MergeAction) (*types.MergeAction, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MergeAction, error)

	// FindByPair is order-independent: it matches (primary, secondary) in
	// either orientation and returns the most recent row.
	FindByPair(dbc dbctx.Context, entityType string, a, b uuid.UUID) (*types.MergeAction, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// FindDoneBackupForIdentity locates the DONE ledger row whose secondary
	// backup contains the given identity tuple, i.e. the merge that
	// absorbed that identity into the primary.
	FindDoneBackupForIdentity(dbc dbctx.Context, primaryID uuid.UUID, platform, identityType, value string) (*types.MergeAction, error)
}

type mergeActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMergeActionRepo(db *gorm.DB, baseLog *logger.Logger) MergeActionRepo {
	return &mergeActionRepo{db: db, log: baseLog.With("repo", "MergeActionRepo")}
}

func (r *mergeActionRepo) Add(dbc dbctx.Context, row *types.MergeAction) (*types.MergeAction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *mergeActionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MergeAction, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.MergeAction
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *mergeActionRepo) FindByPair(dbc dbctx.Context, entityType string, a, b uuid.UUID) (*types.MergeAction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.MergeAction
	err := t.WithContext(dbc.Ctx).
		Where("type = ?", entityType).
		Where("(primary_id = ? AND secondary_id = ?) OR (primary_id = ? AND secondary_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *mergeActionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return t.WithContext(dbc.Ctx).
		Model(&types.MergeAction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *mergeActionRepo) FindDoneBackupForIdentity(dbc dbctx.Context, primaryID uuid.UUID, platform, identityType, value string) (*types.MergeAction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	needle, err := json.Marshal([]map[string]interface{}{{
		"platform": platform,
		"type":     identityType,
		"value":    value,
	}})
	if err != nil {
		return nil, err
	}
	var row types.MergeAction
	err = t.WithContext(dbc.Ctx).
		Where("primary_id = ? AND state = ?", primaryID, types.MergeStateDone).
		Where("unmerge_backup -> 'secondary' -> 'identities' @> ?", string(needle)).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
