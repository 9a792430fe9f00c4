package entity

import (
	"time"

	"github.com/google/uuid"
)

// Affiliation links a member entity to an organization entity over an
// optional date range (work experience). Overlapping ranges for the same
// organization are retained side by side after a merge; historical
// employment data is never collapsed silently.
type Affiliation struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MemberID       uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`

	Title     string     `gorm:"column:title" json:"title,omitempty"`
	DateStart *time.Time `gorm:"column:date_start" json:"date_start,omitempty"`
	DateEnd   *time.Time `gorm:"column:date_end" json:"date_end,omitempty"`

	// Platform of the integration the affiliation was derived from.
	SourcePlatform string `gorm:"column:source_platform;index" json:"source_platform,omitempty"`

	AllowAffiliation        bool `gorm:"column:allow_affiliation;not null;default:true" json:"allow_affiliation"`
	IsPrimaryWorkExperience bool `gorm:"column:is_primary_work_experience;not null;default:false" json:"is_primary_work_experience"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Affiliation) TableName() string { return "affiliation" }
