package merge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StateInProgress = "IN_PROGRESS"
	StateDone       = "DONE"
	StateError      = "ERROR"

	StepMergeStarted    = "MERGE_STARTED"
	StepMergeSyncDone   = "MERGE_SYNC_DONE"
	StepUnmergeStarted  = "UNMERGE_STARTED"
	StepUnmergeSyncDone = "UNMERGE_SYNC_DONE"
)

// MergeAction is the durable ledger row for a merge or unmerge. It is the
// single source of truth for "is an operation in progress for this pair"
// and, through Backup, the only undo mechanism. Rows are never deleted
// while either referenced entity exists.
//
// At most one IN_PROGRESS row may exist per unordered pair; a partial
// unique index on (least(primary_id, secondary_id), greatest(...)) turns a
// lost insertion race into a caller-visible conflict.
type MergeAction struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	// member|organization
	Type        string    `gorm:"column:type;not null;index" json:"type"`
	PrimaryID   uuid.UUID `gorm:"type:uuid;column:primary_id;not null;index" json:"primary_id"`
	SecondaryID uuid.UUID `gorm:"type:uuid;column:secondary_id;not null;index" json:"secondary_id"`

	State string `gorm:"column:state;not null;index" json:"state"`
	Step  string `gorm:"column:step;not null" json:"step"`

	// Full pre-merge snapshot of both entities' mergeable fields,
	// identities and affiliations (merge.Backup).
	Backup datatypes.JSON `gorm:"column:unmerge_backup;type:jsonb" json:"unmerge_backup,omitempty"`

	Error      string     `gorm:"column:error" json:"error,omitempty"`
	ActionedBy *uuid.UUID `gorm:"type:uuid;column:actioned_by" json:"actioned_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (MergeAction) TableName() string { return "merge_action" }

// Terminal reports whether the action can no longer change state on its own.
func (m *MergeAction) Terminal() bool {
	return m.State == StateDone || m.State == StateError
}
