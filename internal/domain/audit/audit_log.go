package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionEntityMerge   = "entity-merge"
	ActionEntityUnmerge = "entity-unmerge"
	ActionNoMergeAdd    = "no-merge-add"
)

// AuditLog records before/after snapshots of state-changing API operations.
type AuditLog struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID  `gorm:"type:uuid;column:tenant_id;index" json:"tenant_id"`
	ActorID  *uuid.UUID `gorm:"type:uuid;column:actor_id;index" json:"actor_id,omitempty"`

	Action      string     `gorm:"column:action;not null;index" json:"action"`
	EntityID    uuid.UUID  `gorm:"type:uuid;column:entity_id;not null;index" json:"entity_id"`
	SecondaryID *uuid.UUID `gorm:"type:uuid;column:secondary_id;index" json:"secondary_id,omitempty"`

	OldState datatypes.JSON `gorm:"column:old_state;type:jsonb" json:"old_state,omitempty"`
	NewState datatypes.JSON `gorm:"column:new_state;type:jsonb" json:"new_state,omitempty"`

	Success bool   `gorm:"column:success;not null;default:false" json:"success"`
	Error   string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }
