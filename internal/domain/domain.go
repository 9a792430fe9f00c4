package domain

import (
	"github.com/openmesh-labs/identityhub/internal/domain/audit"
	"github.com/openmesh-labs/identityhub/internal/domain/entity"
	"github.com/openmesh-labs/identityhub/internal/domain/merge"
)

const (
	KindMember       = entity.KindMember
	KindOrganization = entity.KindOrganization

	IdentityTypeUsername      = entity.IdentityTypeUsername
	IdentityTypeEmail         = entity.IdentityTypeEmail
	IdentityTypePrimaryDomain = entity.IdentityTypePrimaryDomain
	IdentityTypeAltDomain     = entity.IdentityTypeAltDomain

	MergeStateInProgress = merge.StateInProgress
	MergeStateDone       = merge.StateDone
	MergeStateError      = merge.StateError

	MergeStepStarted    = merge.StepMergeStarted
	MergeStepSyncDone   = merge.StepMergeSyncDone
	UnmergeStepStarted  = merge.StepUnmergeStarted
	UnmergeStepSyncDone = merge.StepUnmergeSyncDone

	AuditActionEntityMerge   = audit.ActionEntityMerge
	AuditActionEntityUnmerge = audit.ActionEntityUnmerge
	AuditActionNoMergeAdd    = audit.ActionNoMergeAdd
)

type (
	Entity            = entity.Entity
	Identity          = entity.Identity
	Affiliation       = entity.Affiliation
	Activity          = entity.Activity
	SegmentMembership = entity.SegmentMembership

	MergeAction    = merge.MergeAction
	NoMergeRecord  = merge.NoMergeRecord
	Backup         = merge.Backup
	EntitySnapshot = merge.EntitySnapshot
	UnmergePlan    = merge.UnmergePlan

	AuditLog = audit.AuditLog
)

// SnapshotOf copies an entity's mergeable fields into a ledger snapshot.
func SnapshotOf(e *entity.Entity) merge.EntitySnapshot { return merge.SnapshotOf(e) }
