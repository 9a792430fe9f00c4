package merge

import (
	"time"

	"github.com/google/uuid"
)

// NoMergeRecord suppresses a pair of entities from automatic merge
// suggestions. Stored once per pair; lookups treat (a, b) and (b, a) as
// the same record.
type NoMergeRecord struct {
	EntityID  uuid.UUID `gorm:"type:uuid;column:entity_id;not null;primaryKey" json:"entity_id"`
	NoMergeID uuid.UUID `gorm:"type:uuid;column:no_merge_id;not null;primaryKey" json:"no_merge_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (NoMergeRecord) TableName() string { return "entity_no_merge" }
