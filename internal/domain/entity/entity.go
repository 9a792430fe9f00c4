package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	KindMember       = "member"
	KindOrganization = "organization"
)

// Entity is a person or organization aggregated from ingestion sources.
// Identities, affiliations and activities reference it by id; merge and
// unmerge only ever move those references, never the referenced content.
type Entity struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Kind        string         `gorm:"column:kind;not null;index" json:"kind"`
	DisplayName string         `gorm:"column:display_name;not null" json:"display_name"`
	Attributes  datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes"`
	Emails      datatypes.JSON `gorm:"column:emails;type:jsonb" json:"emails"`

	Score         int            `gorm:"column:score;not null;default:-1" json:"score"`
	Reach         datatypes.JSON `gorm:"column:reach;type:jsonb" json:"reach"`
	ActivityCount int64          `gorm:"column:activity_count;not null;default:0" json:"activity_count"`
	JoinedAt      *time.Time     `gorm:"column:joined_at" json:"joined_at,omitempty"`

	ManuallyCreated bool `gorm:"column:manually_created;not null;default:false" json:"manually_created"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Entity) TableName() string { return "entity" }
