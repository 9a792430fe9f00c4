package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Activity is an immutable event record owned by exactly one entity.
// ObjectEntityID carries the optional second party of relational events
// (e.g. a member acting on an organization). The engine rewrites only the
// ownership columns; Payload and the attribution columns never change.
type Activity struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	EntityID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"entity_id"`
	ObjectEntityID *uuid.UUID `gorm:"type:uuid;column:object_entity_id;index" json:"object_entity_id,omitempty"`

	// Identity attribution at ingestion time, used for heuristic unmerge
	// partitioning. Matches entity_identity (platform, value) for username
	// identities.
	Platform string `gorm:"column:platform;not null;index" json:"platform"`
	Username string `gorm:"column:username;not null;index" json:"username"`

	Type      string         `gorm:"column:type;not null" json:"type"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Activity) TableName() string { return "activity" }
