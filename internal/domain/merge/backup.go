package merge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openmesh-labs/identityhub/internal/domain/entity"
)

// EntitySnapshot captures one entity's mergeable state at a point in time.
// Snapshots are written into the ledger before any mutation and replayed
// verbatim when a merge is reverted.
type EntitySnapshot struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Kind        string         `json:"kind"`
	DisplayName string         `json:"display_name"`
	Attributes  datatypes.JSON `json:"attributes,omitempty"`
	Emails      datatypes.JSON `json:"emails,omitempty"`

	Score         int            `json:"score"`
	Reach         datatypes.JSON `json:"reach,omitempty"`
	ActivityCount int64          `json:"activity_count"`
	JoinedAt      *time.Time     `json:"joined_at,omitempty"`

	ManuallyCreated bool `json:"manually_created"`

	Identities   []entity.Identity    `json:"identities"`
	Affiliations []entity.Affiliation `json:"affiliations"`
	SegmentIDs   []uuid.UUID          `json:"segment_ids,omitempty"`
}

// Backup is the ledger payload: both sides of a merge, pre-mutation.
type Backup struct {
	Primary   EntitySnapshot `json:"primary"`
	Secondary EntitySnapshot `json:"secondary"`
}

// SnapshotOf copies the mergeable fields of an entity. Relations are
// attached by the caller, which knows the transaction to read them in.
func SnapshotOf(e *entity.Entity) EntitySnapshot {
	return EntitySnapshot{
		ID:              e.ID,
		TenantID:        e.TenantID,
		Kind:            e.Kind,
		DisplayName:     e.DisplayName,
		Attributes:      e.Attributes,
		Emails:          e.Emails,
		Score:           e.Score,
		Reach:           e.Reach,
		ActivityCount:   e.ActivityCount,
		JoinedAt:        e.JoinedAt,
		ManuallyCreated: e.ManuallyCreated,
	}
}

// UnmergePlan describes how a primary entity splits back into two. Plans
// come from either an exact ledger-backup replay or a heuristic partition
// of the primary's current state; ExecuteUnmerge applies them the same way.
type UnmergePlan struct {
	// Replayed is true when the plan was derived verbatim from a DONE
	// ledger backup rather than partitioned heuristically.
	Replayed bool `json:"replayed"`

	// MergeActionID is set on replayed plans.
	MergeActionID *uuid.UUID `json:"merge_action_id,omitempty"`

	// Primary is the post-split shape of the surviving entity.
	Primary EntitySnapshot `json:"primary"`

	// Secondary is the entity to split out. On replayed plans its ID is the
	// original pre-merge id; on heuristic plans the ID is uuid.Nil and
	// assigned at execution.
	Secondary EntitySnapshot `json:"secondary"`
}
