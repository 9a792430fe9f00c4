package entity

import (
	"time"

	"github.com/google/uuid"
)

// SegmentMembership records that an entity belongs to a segment (a
// sub-community or workspace partition owned elsewhere in the platform).
// Merging re-points the secondary's memberships to the primary; a pair
// already present on the primary is dropped rather than duplicated.
type SegmentMembership struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	EntityID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uix_entity_segment" json:"entity_id"`
	SegmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uix_entity_segment" json:"segment_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SegmentMembership) TableName() string { return "entity_segment" }
