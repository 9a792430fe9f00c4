package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/platform/apierr"
	"github.com/openmesh-labs/identityhub/internal/realtime"
)

// FinalizeRequest is the payload handed to the durable finalizer after the
// synchronous phase of a merge or unmerge commits.
type FinalizeRequest struct {
	// MergeActionID pins the finalizer's ledger writes to the row the
	// synchronous phase opened. A pair can accumulate rows over its
	// merge/unmerge history; terminal states must never touch the old ones.
	MergeActionID uuid.UUID `json:"merge_action_id"`

	TenantID    uuid.UUID  `json:"tenant_id"`
	Kind        string     `json:"kind"`
	PrimaryID   uuid.UUID  `json:"primary_id"`
	SecondaryID uuid.UUID  `json:"secondary_id"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
}

// FinalizerDispatcher starts the asynchronous finalization workflow.
// Implementations must tolerate duplicate dispatch for the same pair:
// a dispatch that finds the workflow already running is a success.
type FinalizerDispatcher interface {
	DispatchFinishMerge(ctx context.Context, req FinalizeRequest) error
	DispatchFinishUnmerge(ctx context.Context, req FinalizeRequest) error
}

// MergeResult reports what the synchronous merge phase did.
type MergeResult struct {
	// NoOp is true for a self-merge request; nothing was written.
	NoOp bool `json:"no_op"`

	MergeActionID uuid.UUID `json:"merge_action_id,omitempty"`
	PrimaryID     uuid.UUID `json:"primary_id"`
	SecondaryID   uuid.UUID `json:"secondary_id"`
}

// MergeService coordinates the full merge of two entities: ledger guard,
// pre-mutation backup, identity and relation moves in one transaction,
// field fold, then handoff to the durable finalizer.
type MergeService interface {
	Merge(ctx context.Context, actorID *uuid.UUID, primaryID, secondaryID uuid.UUID) (*MergeResult, error)
}

type mergeService struct {
	db           *gorm.DB
	entities     entityrepo.EntityRepo
	identities   entityrepo.IdentityRepo
	affiliations entityrepo.AffiliationRepo
	activities   entityrepo.ActivityRepo
	segments     entityrepo.SegmentRepo
	actions      mergerepo.MergeActionRepo
	audit        AuditService
	finalizer    FinalizerDispatcher
	notifier     Notifier
	log          *logger.Logger
}

func NewMergeService(
	db *gorm.DB,
	entities entityrepo.EntityRepo,
	identities entityrepo.IdentityRepo,
	affiliations entityrepo.AffiliationRepo,
	activities entityrepo.ActivityRepo,
	segments entityrepo.SegmentRepo,
	actions mergerepo.MergeActionRepo,
	auditSvc AuditService,
	finalizer FinalizerDispatcher,
	notifier Notifier,
	baseLog *logger.Logger,
) MergeService {
	return &mergeService{
		db:           db,
		entities:     entities,
		identities:   identities,
		affiliations: affiliations,
		activities:   activities,
		segments:     segments,
		actions:      actions,
		audit:        auditSvc,
		finalizer:    finalizer,
		notifier:     notifier,
		log:          baseLog.With("service", "MergeService"),
	}
}

func (s *mergeService) Merge(ctx context.Context, actorID *uuid.UUID, primaryID, secondaryID uuid.UUID) (*MergeResult, error) {
	log := s.log.With("primary_id", primaryID, "secondary_id", secondaryID)

	if primaryID == secondaryID {
		log.Info("self-merge request, nothing to do")
		return &MergeResult{NoOp: true, PrimaryID: primaryID, SecondaryID: secondaryID}, nil
	}

	dbc := dbctx.New(ctx)

	primary, secondary, err := s.loadPair(dbc, primaryID, secondaryID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.actions.FindByPair(dbc, primary.Kind, primaryID, secondaryID); err != nil {
		return nil, apierr.Transaction("MERGE_LEDGER_LOOKUP", err)
	} else if existing != nil && existing.State == types.MergeStateInProgress {
		return nil, apierr.Conflict("MERGE_IN_PROGRESS", fmt.Errorf("a merge or unmerge involving this pair is already in progress"))
	}

	backup, err := s.buildBackup(dbc, primary, secondary)
	if err != nil {
		return nil, err
	}

	action, err := s.openLedger(dbc, actorID, primary, secondary, backup)
	if err != nil {
		return nil, err
	}
	log = log.With("merge_action_id", action.ID)

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyMerge(dbc.WithTx(tx), primary, secondary, backup)
	})
	if txErr != nil {
		log.Error("merge transaction failed", "error", txErr)
		s.failLedger(dbc, action.ID, txErr)
		s.audit.RecordMerge(dbc, actorID, *backup, txErr)
		s.notifyOutcome(ctx, actorID, primary, secondary, false)
		return nil, apierr.Transaction("MERGE_TX_FAILED", txErr)
	}

	if err := s.actions.UpdateFields(dbc, action.ID, map[string]interface{}{
		"step": types.MergeStepSyncDone,
	}); err != nil {
		// The data moves committed; the ledger step is advisory at this
		// point and the finalizer sets the terminal state regardless.
		log.Warn("ledger step update failed after commit", "error", err)
	}

	s.audit.RecordMerge(dbc, actorID, *backup, nil)

	if err := s.finalizer.DispatchFinishMerge(ctx, FinalizeRequest{
		MergeActionID: action.ID,
		TenantID:      primary.TenantID,
		Kind:          primary.Kind,
		PrimaryID:     primaryID,
		SecondaryID:   secondaryID,
		ActorID:       actorID,
	}); err != nil {
		log.Error("finalizer dispatch failed", "error", err)
		return nil, apierr.Dispatch("MERGE_DISPATCH_FAILED", err)
	}

	log.Info("merge sync phase done, finalizer dispatched")
	return &MergeResult{
		MergeActionID: action.ID,
		PrimaryID:     primaryID,
		SecondaryID:   secondaryID,
	}, nil
}

func (s *mergeService) loadPair(dbc dbctx.Context, primaryID, secondaryID uuid.UUID) (*types.Entity, *types.Entity, error) {
	rows, err := s.entities.GetByIDs(dbc, []uuid.UUID{primaryID, secondaryID})
	if err != nil {
		return nil, nil, apierr.Transaction("MERGE_ENTITY_LOOKUP", err)
	}

	var primary, secondary *types.Entity
	for _, row := range rows {
		switch row.ID {
		case primaryID:
			primary = row
		case secondaryID:
			secondary = row
		}
	}
	if primary == nil || secondary == nil {
		return nil, nil, apierr.NotFound("ENTITY_NOT_FOUND", fmt.Errorf("one or both entities do not exist"))
	}
	if primary.TenantID != secondary.TenantID {
		return nil, nil, apierr.Validation("MERGE_TENANT_MISMATCH", fmt.Errorf("entities belong to different tenants"))
	}
	if primary.Kind != secondary.Kind {
		return nil, nil, apierr.Validation("MERGE_KIND_MISMATCH", fmt.Errorf("cannot merge a %s into a %s", secondary.Kind, primary.Kind))
	}
	return primary, secondary, nil
}

func (s *mergeService) buildBackup(dbc dbctx.Context, primary, secondary *types.Entity) (*types.Backup, error) {
	identities, err := s.identities.ListByEntityIDs(dbc, []uuid.UUID{primary.ID, secondary.ID})
	if err != nil {
		return nil, apierr.Transaction("MERGE_IDENTITY_LOOKUP", err)
	}
	affiliations, err := s.affiliations.ListByMemberIDs(dbc, []uuid.UUID{primary.ID, secondary.ID})
	if err != nil {
		return nil, apierr.Transaction("MERGE_AFFILIATION_LOOKUP", err)
	}

	primarySegments, err := s.segments.ListSegmentIDs(dbc, primary.ID)
	if err != nil {
		return nil, apierr.Transaction("MERGE_SEGMENT_LOOKUP", err)
	}
	secondarySegments, err := s.segments.ListSegmentIDs(dbc, secondary.ID)
	if err != nil {
		return nil, apierr.Transaction("MERGE_SEGMENT_LOOKUP", err)
	}

	backup := &types.Backup{
		Primary:   types.SnapshotOf(primary),
		Secondary: types.SnapshotOf(secondary),
	}
	backup.Primary.SegmentIDs = primarySegments
	backup.Secondary.SegmentIDs = secondarySegments
	for _, identity := range identities {
		if identity.EntityID == primary.ID {
			backup.Primary.Identities = append(backup.Primary.Identities, identity)
		} else {
			backup.Secondary.Identities = append(backup.Secondary.Identities, identity)
		}
	}
	for _, aff := range affiliations {
		if aff.MemberID == primary.ID {
			backup.Primary.Affiliations = append(backup.Primary.Affiliations, aff)
		} else {
			backup.Secondary.Affiliations = append(backup.Secondary.Affiliations, aff)
		}
	}
	return backup, nil
}

func (s *mergeService) openLedger(dbc dbctx.Context, actorID *uuid.UUID, primary, secondary *types.Entity, backup *types.Backup) (*types.MergeAction, error) {
	raw, err := json.Marshal(backup)
	if err != nil {
		return nil, apierr.Transaction("MERGE_BACKUP_ENCODE", err)
	}

	action, err := s.actions.Add(dbc, &types.MergeAction{
		TenantID:    primary.TenantID,
		Type:        primary.Kind,
		PrimaryID:   primary.ID,
		SecondaryID: secondary.ID,
		State:       types.MergeStateInProgress,
		Step:        types.MergeStepStarted,
		Backup:      datatypes.JSON(raw),
		ActionedBy:  actorID,
	})
	if err != nil {
		// The pair index turns a lost insertion race into a unique
		// violation here.
		if isUniqueViolation(err) {
			return nil, apierr.Conflict("MERGE_IN_PROGRESS", fmt.Errorf("a merge or unmerge involving this pair is already in progress"))
		}
		return nil, apierr.Transaction("MERGE_LEDGER_OPEN", err)
	}
	return action, nil
}

func (s *mergeService) applyMerge(txc dbctx.Context, primary, secondary *types.Entity, backup *types.Backup) error {
	plan := PlanIdentityMoves(backup.Primary.Identities, backup.Secondary.Identities)

	if len(plan.ToMove) > 0 {
		if err := s.identities.MoveToEntity(txc, secondary.ID, primary.ID, plan.ToMove); err != nil {
			return fmt.Errorf("move identities: %w", err)
		}
	}
	if len(plan.ToUpgrade) > 0 {
		if err := s.identities.UpgradeVerified(txc, secondary.ID, primary.ID, plan.ToUpgrade); err != nil {
			return fmt.Errorf("upgrade identities: %w", err)
		}
	}

	switch primary.Kind {
	case types.KindMember:
		if err := s.affiliations.MoveBetweenMembers(txc, secondary.ID, primary.ID); err != nil {
			return fmt.Errorf("move affiliations: %w", err)
		}
	case types.KindOrganization:
		if err := s.affiliations.MoveOrganizationRefs(txc, secondary.ID, primary.ID); err != nil {
			return fmt.Errorf("move organization refs: %w", err)
		}
	}

	if err := s.segments.MoveMemberships(txc, secondary.ID, primary.ID); err != nil {
		return fmt.Errorf("move segment memberships: %w", err)
	}

	if _, err := s.activities.RelinkOwner(txc, secondary.ID, primary.ID); err != nil {
		return fmt.Errorf("relink activities: %w", err)
	}
	if _, err := s.activities.RelinkObject(txc, secondary.ID, primary.ID); err != nil {
		return fmt.Errorf("relink activity objects: %w", err)
	}

	updates := MergeEntityFields(primary, secondary)
	if secondary.ActivityCount > 0 {
		updates["activity_count"] = primary.ActivityCount + secondary.ActivityCount
	}
	if len(updates) > 0 {
		if err := s.entities.UpdateFields(txc, primary.ID, updates); err != nil {
			return fmt.Errorf("fold entity fields: %w", err)
		}
	}

	return nil
}

func (s *mergeService) failLedger(dbc dbctx.Context, actionID uuid.UUID, cause error) {
	if err := s.actions.UpdateFields(dbc, actionID, map[string]interface{}{
		"state": types.MergeStateError,
		"error": cause.Error(),
	}); err != nil {
		s.log.Error("ledger error-state update failed", "merge_action_id", actionID, "error", err)
	}
}

func (s *mergeService) notifyOutcome(ctx context.Context, actorID *uuid.UUID, primary, secondary *types.Entity, success bool) {
	s.notifier.Notify(ctx, realtime.Message{
		Event:                realtime.EventEntityMerged,
		ActorID:              actorID,
		PrimaryID:            primary.ID,
		SecondaryID:          secondary.ID,
		Success:              success,
		PrimaryDisplayName:   primary.DisplayName,
		SecondaryDisplayName: secondary.DisplayName,
	})
}
