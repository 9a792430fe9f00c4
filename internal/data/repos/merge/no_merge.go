package merge

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type NoMergeRepo interface {
	Add(dbc dbctx.Context, a, b uuid.UUID) error
	Exists(dbc dbctx.Context, a, b uuid.UUID) (bool, error)

	// ListForEntity returns every entity suppressed against the given one,
	// regardless of which column it was stored under.
	ListForEntity(dbc dbctx.Context, id uuid.UUID) ([]uuid.UUID, error)
}

type noMergeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoMergeRepo(db *gorm.DB, baseLog *logger.Logger) NoMergeRepo {
	return &noMergeRepo{db: db, log: baseLog.With("repo", "NoMergeRepo")}
}

func (r *noMergeRepo) Add(dbc dbctx.Context, a, b uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	row := &types.NoMergeRecord{EntityID: a, NoMergeID: b}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

func (r *noMergeRepo) Exists(dbc dbctx.Context, a, b uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.NoMergeRecord{}).
		Where("(entity_id = ? AND no_merge_id = ?) OR (entity_id = ? AND no_merge_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

func (r *noMergeRepo) ListForEntity(dbc dbctx.Context, id uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []types.NoMergeRecord
	if err := t.WithContext(dbc.Ctx).
		Where("entity_id = ? OR no_merge_id = ?", id, id).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.EntityID == id {
			out = append(out, row.NoMergeID)
		} else {
			out = append(out, row.EntityID)
		}
	}
	return out, nil
}
