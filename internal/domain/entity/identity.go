package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	IdentityTypeUsername      = "username"
	IdentityTypeEmail         = "email"
	IdentityTypePrimaryDomain = "primary-domain"
	IdentityTypeAltDomain     = "alternative-domain"
)

// Identity is a (platform, type, value) tuple owned by exactly one entity.
// Verified identities are unique per tenant across non-deleted rows; the
// merge engine preserves that invariant by upgrading in place instead of
// moving when the tuple already exists on the primary.
type Identity struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	EntityID uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`

	Platform string `gorm:"column:platform;not null;index" json:"platform"`
	Type     string `gorm:"column:type;not null" json:"type"`
	Value    string `gorm:"column:value;not null;index" json:"value"`
	Verified bool   `gorm:"column:verified;not null;default:false" json:"verified"`

	SourceID      string     `gorm:"column:source_id" json:"source_id,omitempty"`
	IntegrationID *uuid.UUID `gorm:"type:uuid;column:integration_id" json:"integration_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Identity) TableName() string { return "entity_identity" }

// SameTuple reports whether two identities carry the same external reference,
// ignoring ownership and verification.
func (i Identity) SameTuple(other Identity) bool {
	return strings.EqualFold(i.Platform, other.Platform) &&
		strings.EqualFold(i.Type, other.Type) &&
		i.Value == other.Value
}

// TupleKey is a map key for (platform, type, value) deduplication.
func (i Identity) TupleKey() string {
	return strings.ToLower(i.Platform) + "\x00" + strings.ToLower(i.Type) + "\x00" + i.Value
}
