package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type SegmentRepo interface {
	ListSegmentIDs(dbc dbctx.Context, entityID uuid.UUID) ([]uuid.UUID, error)

	// AddMemberships inserts memberships for the given segments, skipping
	// pairs the entity already has.
	AddMemberships(dbc dbctx.Context, tenantID, entityID uuid.UUID, segmentIDs []uuid.UUID) error

	// MoveMemberships re-points one entity's memberships to another.
	// Memberships the target already holds are dropped instead of
	// duplicated.
	MoveMemberships(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID) error
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return &segmentRepo{db: db, log: baseLog.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) ListSegmentIDs(dbc dbctx.Context, entityID uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []uuid.UUID
	if entityID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.SegmentMembership{}).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Pluck("segment_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) AddMemberships(dbc dbctx.Context, tenantID, entityID uuid.UUID, segmentIDs []uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if entityID == uuid.Nil || len(segmentIDs) == 0 {
		return nil
	}
	rows := make([]types.SegmentMembership, 0, len(segmentIDs))
	for _, segmentID := range segmentIDs {
		rows = append(rows, types.SegmentMembership{
			ID:        uuid.New(),
			TenantID:  tenantID,
			EntityID:  entityID,
			SegmentID: segmentID,
		})
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *segmentRepo) MoveMemberships(dbc dbctx.Context, fromEntityID, toEntityID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}

	already := t.WithContext(dbc.Ctx).
		Model(&types.SegmentMembership{}).
		Select("segment_id").
		Where("entity_id = ?", toEntityID)
	if err := t.WithContext(dbc.Ctx).
		Model(&types.SegmentMembership{}).
		Where("entity_id = ? AND segment_id NOT IN (?)", fromEntityID, already).
		Update("entity_id", toEntityID).Error; err != nil {
		return err
	}

	// What is left on the source duplicates a membership the target
	// already holds.
	return t.WithContext(dbc.Ctx).
		Where("entity_id = ?", fromEntityID).
		Delete(&types.SegmentMembership{}).Error
}
