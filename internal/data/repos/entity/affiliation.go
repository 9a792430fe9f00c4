package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type AffiliationRepo interface {
	Create(dbc dbctx.Context, rows []*types.Affiliation) ([]*types.Affiliation, error)
	ListByMemberIDs(dbc dbctx.Context, memberIDs []uuid.UUID) ([]types.Affiliation, error)

	// MoveBetweenMembers re-points every affiliation owned by the secondary
	// member to the primary. Overlapping rows for the same organization and
	// date range are retained; no interval merging happens here.
	MoveBetweenMembers(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) error

	// MoveOrganizationRefs re-points the organization side, for
	// organization merges.
	MoveOrganizationRefs(dbc dbctx.Context, secondaryOrgID, primaryOrgID uuid.UUID) error

	MoveByIDs(dbc dbctx.Context, ids []uuid.UUID, toMemberID uuid.UUID) error
}

type affiliationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAffiliationRepo(db *gorm.DB, baseLog *logger.Logger) AffiliationRepo {
	return &affiliationRepo{db: db, log: baseLog.With("repo", "AffiliationRepo")}
}

func (r *affiliationRepo) Create(dbc dbctx.Context, rows []*types.Affiliation) ([]*types.Affiliation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Affiliation{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *affiliationRepo) ListByMemberIDs(dbc dbctx.Context, memberIDs []uuid.UUID) ([]types.Affiliation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []types.Affiliation
	if len(memberIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("member_id IN ?", memberIDs).
		Order("date_start ASC NULLS LAST").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *affiliationRepo) MoveBetweenMembers(dbc dbctx.Context, secondaryID, primaryID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Affiliation{}).
		Where("member_id = ?", secondaryID).
		Update("member_id", primaryID).Error
}

func (r *affiliationRepo) MoveOrganizationRefs(dbc dbctx.Context, secondaryOrgID, primaryOrgID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Affiliation{}).
		Where("organization_id = ?", secondaryOrgID).
		Update("organization_id", primaryOrgID).Error
}

func (r *affiliationRepo) MoveByIDs(dbc dbctx.Context, ids []uuid.UUID, toMemberID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.Affiliation{}).
		Where("id IN ?", ids).
		Update("member_id", toMemberID).Error
}
