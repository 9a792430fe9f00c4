package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

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

// IdentityRef selects one identity of an entity as the seed of an unmerge.
type IdentityRef struct {
	Platform string `json:"platform" binding:"required"`
	Type     string `json:"type"`
	Value    string `json:"value" binding:"required"`
}

// UnmergeResult reports what the synchronous unmerge phase did.
type UnmergeResult struct {
	MergeActionID uuid.UUID `json:"merge_action_id"`
	PrimaryID     uuid.UUID `json:"primary_id"`
	SecondaryID   uuid.UUID `json:"secondary_id"`
	Replayed      bool      `json:"replayed"`
}

// UnmergeService splits an identity (and everything attributed to it) back
// out of a merged entity. Preview builds the plan: a verbatim replay when a
// DONE ledger backup covers the identity, a heuristic partition otherwise.
// Execute applies a previewed plan and rejects it when the entity's state
// has drifted since the preview.
type UnmergeService interface {
	Preview(ctx context.Context, primaryID uuid.UUID, ref IdentityRef) (*types.UnmergePlan, error)
	Execute(ctx context.Context, actorID *uuid.UUID, primaryID uuid.UUID, plan *types.UnmergePlan) (*UnmergeResult, error)
	CanRevert(ctx context.Context, primaryID uuid.UUID, ref IdentityRef) (bool, error)
}

type unmergeService struct {
	db           *gorm.DB
	entities     entityrepo.EntityRepo
	identities   entityrepo.IdentityRepo
	affiliations entityrepo.AffiliationRepo
	activities   entityrepo.ActivityRepo
	segments     entityrepo.SegmentRepo
	actions      mergerepo.MergeActionRepo
	noMerges     mergerepo.NoMergeRepo
	audit        AuditService
	finalizer    FinalizerDispatcher
	notifier     Notifier
	log          *logger.Logger
}

func NewUnmergeService(
	db *gorm.DB,
	entities entityrepo.EntityRepo,
	identities entityrepo.IdentityRepo,
	affiliations entityrepo.AffiliationRepo,
	activities entityrepo.ActivityRepo,
	segments entityrepo.SegmentRepo,
	actions mergerepo.MergeActionRepo,
	noMerges mergerepo.NoMergeRepo,
	auditSvc AuditService,
	finalizer FinalizerDispatcher,
	notifier Notifier,
	baseLog *logger.Logger,
) UnmergeService {
	return &unmergeService{
		db:           db,
		entities:     entities,
		identities:   identities,
		affiliations: affiliations,
		activities:   activities,
		segments:     segments,
		actions:      actions,
		noMerges:     noMerges,
		audit:        auditSvc,
		finalizer:    finalizer,
		notifier:     notifier,
		log:          baseLog.With("service", "UnmergeService"),
	}
}

func (s *unmergeService) CanRevert(ctx context.Context, primaryID uuid.UUID, ref IdentityRef) (bool, error) {
	dbc := dbctx.New(ctx)
	action, err := s.actions.FindDoneBackupForIdentity(dbc, primaryID, ref.Platform, ref.Type, ref.Value)
	if err != nil {
		return false, apierr.Transaction("UNMERGE_LEDGER_LOOKUP", err)
	}
	if action == nil {
		return false, nil
	}

	// A later merge or unmerge may have moved the identity elsewhere; the
	// backup only replays cleanly while the primary still owns it.
	owned, err := s.identities.FindOwned(dbc, primaryID, ref.Platform, ref.Type, ref.Value)
	if err != nil {
		return false, apierr.Transaction("UNMERGE_IDENTITY_LOOKUP", err)
	}
	return owned != nil, nil
}

func (s *unmergeService) Preview(ctx context.Context, primaryID uuid.UUID, ref IdentityRef) (*types.UnmergePlan, error) {
	dbc := dbctx.New(ctx)
	primary, owned, err := s.loadSeed(dbc, primaryID, ref)
	if err != nil {
		return nil, err
	}
	return s.buildPlan(dbc, primary, owned, ref)
}

func (s *unmergeService) Execute(ctx context.Context, actorID *uuid.UUID, primaryID uuid.UUID, plan *types.UnmergePlan) (*UnmergeResult, error) {
	if plan == nil || len(plan.Secondary.Identities) == 0 {
		return nil, apierr.Validation("UNMERGE_PLAN_EMPTY", fmt.Errorf("an unmerge plan with at least one identity is required"))
	}
	log := s.log.With("primary_id", primaryID, "replayed", plan.Replayed)
	dbc := dbctx.New(ctx)

	primary, err := s.entities.GetByID(dbc, primaryID)
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_ENTITY_LOOKUP", err)
	}
	if primary == nil {
		return nil, apierr.NotFound("ENTITY_NOT_FOUND", fmt.Errorf("entity %s does not exist", primaryID))
	}

	if err := s.checkPlanFresh(dbc, primary, plan); err != nil {
		return nil, err
	}

	secondaryID := plan.Secondary.ID
	if secondaryID == uuid.Nil {
		secondaryID = uuid.New()
		plan.Secondary.ID = secondaryID
	}

	action, err := s.openLedger(dbc, actorID, primary, secondaryID, plan)
	if err != nil {
		return nil, err
	}
	log = log.With("merge_action_id", action.ID, "secondary_id", secondaryID)

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyUnmerge(dbc.WithTx(tx), primary, plan)
	})
	if txErr != nil {
		log.Error("unmerge transaction failed", "error", txErr)
		s.failLedger(dbc, action.ID, txErr)
		s.audit.RecordUnmerge(dbc, actorID, primaryID, secondaryID, *plan, txErr)
		s.notifier.Notify(ctx, realtime.Message{
			Event:              realtime.EventEntityUnmerged,
			ActorID:            actorID,
			PrimaryID:          primaryID,
			SecondaryID:        secondaryID,
			Success:            false,
			PrimaryDisplayName: primary.DisplayName,
		})
		return nil, apierr.Transaction("UNMERGE_TX_FAILED", txErr)
	}

	if err := s.actions.UpdateFields(dbc, action.ID, map[string]interface{}{
		"step": types.UnmergeStepSyncDone,
	}); err != nil {
		log.Warn("ledger step update failed after commit", "error", err)
	}

	// The pair just split apart on purpose; keep it out of future
	// merge suggestions.
	if err := s.noMerges.Add(dbc, primaryID, secondaryID); err != nil {
		log.Warn("no-merge record failed after unmerge", "error", err)
	}

	s.audit.RecordUnmerge(dbc, actorID, primaryID, secondaryID, *plan, nil)

	if err := s.finalizer.DispatchFinishUnmerge(ctx, FinalizeRequest{
		MergeActionID: action.ID,
		TenantID:      primary.TenantID,
		Kind:          primary.Kind,
		PrimaryID:     primaryID,
		SecondaryID:   secondaryID,
		ActorID:       actorID,
	}); err != nil {
		log.Error("finalizer dispatch failed", "error", err)
		return nil, apierr.Dispatch("UNMERGE_DISPATCH_FAILED", err)
	}

	log.Info("unmerge sync phase done, finalizer dispatched", "replayed", plan.Replayed)
	return &UnmergeResult{
		MergeActionID: action.ID,
		PrimaryID:     primaryID,
		SecondaryID:   secondaryID,
		Replayed:      plan.Replayed,
	}, nil
}

func (s *unmergeService) loadSeed(dbc dbctx.Context, primaryID uuid.UUID, ref IdentityRef) (*types.Entity, *types.Identity, error) {
	primary, err := s.entities.GetByID(dbc, primaryID)
	if err != nil {
		return nil, nil, apierr.Transaction("UNMERGE_ENTITY_LOOKUP", err)
	}
	if primary == nil {
		return nil, nil, apierr.NotFound("ENTITY_NOT_FOUND", fmt.Errorf("entity %s does not exist", primaryID))
	}

	owned, err := s.identities.FindOwned(dbc, primaryID, ref.Platform, ref.Type, ref.Value)
	if err != nil {
		return nil, nil, apierr.Transaction("UNMERGE_IDENTITY_LOOKUP", err)
	}
	if owned == nil {
		return nil, nil, apierr.NotFound("IDENTITY_NOT_FOUND", fmt.Errorf("entity %s has no %s identity %q", primaryID, ref.Platform, ref.Value))
	}
	return primary, owned, nil
}

// checkPlanFresh rejects a plan the entity's state has drifted away from
// since the preview. Executing a stale plan would split out rows the caller
// never saw, or miss rows another merge moved in the meantime.
func (s *unmergeService) checkPlanFresh(dbc dbctx.Context, primary *types.Entity, plan *types.UnmergePlan) error {
	if plan.Replayed {
		if plan.MergeActionID == nil {
			return apierr.Validation("UNMERGE_PLAN_INVALID", fmt.Errorf("replayed plan is missing its ledger reference"))
		}
		action, err := s.actions.GetByID(dbc, *plan.MergeActionID)
		if err != nil {
			return apierr.Transaction("UNMERGE_LEDGER_LOOKUP", err)
		}
		if action == nil || action.State != types.MergeStateDone || action.PrimaryID != primary.ID {
			return apierr.Conflict("UNMERGE_PLAN_STALE", fmt.Errorf("the ledger row backing this plan has changed since the preview"))
		}
	}

	current, err := s.identities.ListByEntityIDs(dbc, []uuid.UUID{primary.ID})
	if err != nil {
		return apierr.Transaction("UNMERGE_IDENTITY_LOOKUP", err)
	}
	for _, snap := range plan.Secondary.Identities {
		if !tupleInSet(current, snap) {
			return apierr.Conflict("UNMERGE_PLAN_STALE", fmt.Errorf("identity %s/%s is no longer owned by the entity", snap.Platform, snap.Value))
		}
	}

	remaining := 0
	for _, row := range current {
		if !tupleInSet(plan.Secondary.Identities, row) || tupleInSet(plan.Primary.Identities, row) {
			remaining++
		}
	}
	if remaining == 0 {
		return apierr.Validation("UNMERGE_WOULD_EMPTY", fmt.Errorf("executing this plan would leave the entity without identities"))
	}
	return nil
}

func (s *unmergeService) buildPlan(dbc dbctx.Context, primary *types.Entity, owned *types.Identity, ref IdentityRef) (*types.UnmergePlan, error) {
	action, err := s.actions.FindDoneBackupForIdentity(dbc, primary.ID, ref.Platform, ref.Type, ref.Value)
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_LEDGER_LOOKUP", err)
	}

	if action != nil {
		var backup types.Backup
		if err := json.Unmarshal(action.Backup, &backup); err != nil {
			return nil, apierr.Transaction("UNMERGE_BACKUP_DECODE", err)
		}
		actionID := action.ID
		return &types.UnmergePlan{
			Replayed:      true,
			MergeActionID: &actionID,
			Primary:       backup.Primary,
			Secondary:     backup.Secondary,
		}, nil
	}

	return s.heuristicPlan(dbc, primary, owned)
}

// heuristicPlan partitions the primary's current state by attribution to
// the seed identity: the seed tuple itself, its unverified siblings on the
// same platform, and the affiliations and activities sourced from that
// platform follow it onto the new entity. Verified identities with other
// values stay put; nothing ties them to the seed.
func (s *unmergeService) heuristicPlan(dbc dbctx.Context, primary *types.Entity, owned *types.Identity) (*types.UnmergePlan, error) {
	identities, err := s.identities.ListByEntityIDs(dbc, []uuid.UUID{primary.ID})
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_IDENTITY_LOOKUP", err)
	}
	affiliations, err := s.affiliations.ListByMemberIDs(dbc, []uuid.UUID{primary.ID})
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_AFFILIATION_LOOKUP", err)
	}
	segmentIDs, err := s.segments.ListSegmentIDs(dbc, primary.ID)
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_SEGMENT_LOOKUP", err)
	}

	plan := &types.UnmergePlan{
		Primary: types.SnapshotOf(primary),
		Secondary: types.EntitySnapshot{
			TenantID:    primary.TenantID,
			Kind:        primary.Kind,
			DisplayName: owned.Value,
			Score:       -1,
			// The split identity was active wherever the merged entity
			// was; the new entity inherits those memberships.
			SegmentIDs: segmentIDs,
		},
	}
	plan.Primary.SegmentIDs = segmentIDs

	platform := strings.ToLower(owned.Platform)
	for _, identity := range identities {
		samePlatform := strings.ToLower(identity.Platform) == platform
		if samePlatform && (identity.SameTuple(*owned) || !identity.Verified) {
			plan.Secondary.Identities = append(plan.Secondary.Identities, identity)
		} else {
			plan.Primary.Identities = append(plan.Primary.Identities, identity)
		}
	}
	for _, aff := range affiliations {
		if strings.EqualFold(aff.SourcePlatform, platform) {
			plan.Secondary.Affiliations = append(plan.Secondary.Affiliations, aff)
		} else {
			plan.Primary.Affiliations = append(plan.Primary.Affiliations, aff)
		}
	}

	if len(plan.Primary.Identities) == 0 {
		return nil, apierr.Validation("UNMERGE_WOULD_EMPTY", fmt.Errorf("unmerging platform %s would leave the entity without identities", owned.Platform))
	}

	return plan, nil
}

func (s *unmergeService) openLedger(dbc dbctx.Context, actorID *uuid.UUID, primary *types.Entity, secondaryID uuid.UUID, plan *types.UnmergePlan) (*types.MergeAction, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, apierr.Transaction("UNMERGE_PLAN_ENCODE", err)
	}

	action, err := s.actions.Add(dbc, &types.MergeAction{
		TenantID:    primary.TenantID,
		Type:        primary.Kind,
		PrimaryID:   primary.ID,
		SecondaryID: secondaryID,
		State:       types.MergeStateInProgress,
		Step:        types.UnmergeStepStarted,
		Backup:      datatypes.JSON(raw),
		ActionedBy:  actorID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierr.Conflict("UNMERGE_IN_PROGRESS", fmt.Errorf("a merge or unmerge involving this pair is already in progress"))
		}
		return nil, apierr.Transaction("UNMERGE_LEDGER_OPEN", err)
	}
	return action, nil
}

func (s *unmergeService) applyUnmerge(txc dbctx.Context, primary *types.Entity, plan *types.UnmergePlan) error {
	secondary := entityFromSnapshot(plan.Secondary)
	if err := s.entities.Revive(txc, secondary); err != nil {
		return fmt.Errorf("create split entity: %w", err)
	}

	// Restore the primary's verified flags first. The merge may have
	// upgraded a tuple in place; flipping it back before the secondary's
	// copy is recreated keeps the one-verified-row-per-tuple index happy.
	if plan.Replayed {
		for _, snap := range plan.Primary.Identities {
			current, err := s.identities.FindOwned(txc, primary.ID, snap.Platform, snap.Type, snap.Value)
			if err != nil {
				return fmt.Errorf("lookup identity %s/%s: %w", snap.Platform, snap.Value, err)
			}
			if current != nil && current.Verified != snap.Verified {
				if err := s.identities.SetVerified(txc, primary.ID, snap, snap.Verified); err != nil {
					return fmt.Errorf("restore verified flag: %w", err)
				}
			}
		}
	}

	// Tuples the primary keeps (they pre-existed on both sides) get the
	// secondary's surviving copy restored; tuples owned outright move back;
	// tuples with no surviving row are recreated from the snapshot.
	var toCreate []*types.Identity
	for idx := range plan.Secondary.Identities {
		snap := plan.Secondary.Identities[idx]

		if plan.Replayed && tupleInSet(plan.Primary.Identities, snap) {
			// The merge demoted this copy in place on the shell; it is
			// still there unless something pruned it since.
			onShell, err := s.identities.FindOwned(txc, secondary.ID, snap.Platform, snap.Type, snap.Value)
			if err != nil {
				return fmt.Errorf("lookup identity %s/%s: %w", snap.Platform, snap.Value, err)
			}
			if onShell == nil {
				row := snap
				row.ID = uuid.New()
				row.EntityID = secondary.ID
				toCreate = append(toCreate, &row)
				continue
			}
			if onShell.Verified != snap.Verified {
				if err := s.identities.SetVerified(txc, secondary.ID, snap, snap.Verified); err != nil {
					return fmt.Errorf("restore verified flag: %w", err)
				}
			}
			continue
		}

		current, err := s.identities.FindOwned(txc, primary.ID, snap.Platform, snap.Type, snap.Value)
		if err != nil {
			return fmt.Errorf("lookup identity %s/%s: %w", snap.Platform, snap.Value, err)
		}
		if current == nil {
			row := snap
			row.ID = uuid.New()
			row.EntityID = secondary.ID
			toCreate = append(toCreate, &row)
			continue
		}
		if err := s.identities.MoveToEntity(txc, primary.ID, secondary.ID, []types.Identity{snap}); err != nil {
			return fmt.Errorf("move identity %s/%s: %w", snap.Platform, snap.Value, err)
		}
		if current.Verified != snap.Verified {
			if err := s.identities.SetVerified(txc, secondary.ID, snap, snap.Verified); err != nil {
				return fmt.Errorf("restore verified flag: %w", err)
			}
		}
	}
	if len(toCreate) > 0 {
		if _, err := s.identities.Create(txc, toCreate); err != nil {
			return fmt.Errorf("recreate collapsed identities: %w", err)
		}
	}

	if len(plan.Secondary.Affiliations) > 0 {
		ids := make([]uuid.UUID, 0, len(plan.Secondary.Affiliations))
		for _, aff := range plan.Secondary.Affiliations {
			ids = append(ids, aff.ID)
		}
		if err := s.affiliations.MoveByIDs(txc, ids, secondary.ID); err != nil {
			return fmt.Errorf("move affiliations: %w", err)
		}
	}

	// Memberships the merge folded into the primary are re-added to the
	// split entity; pairs it already holds are skipped.
	if err := s.segments.AddMemberships(txc, secondary.TenantID, secondary.ID, plan.Secondary.SegmentIDs); err != nil {
		return fmt.Errorf("restore segment memberships: %w", err)
	}

	tuples := usernameTuples(plan.Secondary.Identities)
	if len(tuples) > 0 {
		if _, err := s.activities.RelinkOwnerForIdentities(txc, primary.ID, secondary.ID, tuples); err != nil {
			return fmt.Errorf("relink activities: %w", err)
		}
	}

	if err := s.restoreCounts(txc, primary.ID, secondary.ID, plan); err != nil {
		return err
	}

	return nil
}

func (s *unmergeService) restoreCounts(txc dbctx.Context, primaryID, secondaryID uuid.UUID, plan *types.UnmergePlan) error {
	primaryCount, err := s.activities.CountByOwner(txc, primaryID)
	if err != nil {
		return fmt.Errorf("count primary activities: %w", err)
	}
	secondaryCount, err := s.activities.CountByOwner(txc, secondaryID)
	if err != nil {
		return fmt.Errorf("count split activities: %w", err)
	}

	primaryUpdates := map[string]interface{}{"activity_count": primaryCount}
	if plan.Replayed {
		primaryUpdates["display_name"] = plan.Primary.DisplayName
		primaryUpdates["attributes"] = plan.Primary.Attributes
		primaryUpdates["emails"] = plan.Primary.Emails
		primaryUpdates["score"] = plan.Primary.Score
		primaryUpdates["reach"] = plan.Primary.Reach
		primaryUpdates["joined_at"] = plan.Primary.JoinedAt
		primaryUpdates["manually_created"] = plan.Primary.ManuallyCreated
	}
	if err := s.entities.UpdateFields(txc, primaryID, primaryUpdates); err != nil {
		return fmt.Errorf("restore primary fields: %w", err)
	}

	if err := s.entities.UpdateFields(txc, secondaryID, map[string]interface{}{
		"activity_count": secondaryCount,
	}); err != nil {
		return fmt.Errorf("update split activity count: %w", err)
	}
	return nil
}

func (s *unmergeService) failLedger(dbc dbctx.Context, actionID uuid.UUID, cause error) {
	if err := s.actions.UpdateFields(dbc, actionID, map[string]interface{}{
		"state": types.MergeStateError,
		"error": cause.Error(),
	}); err != nil {
		s.log.Error("ledger error-state update failed", "merge_action_id", actionID, "error", err)
	}
}

func entityFromSnapshot(snap types.EntitySnapshot) *types.Entity {
	return &types.Entity{
		ID:              snap.ID,
		TenantID:        snap.TenantID,
		Kind:            snap.Kind,
		DisplayName:     snap.DisplayName,
		Attributes:      snap.Attributes,
		Emails:          snap.Emails,
		Score:           snap.Score,
		Reach:           snap.Reach,
		JoinedAt:        snap.JoinedAt,
		ManuallyCreated: snap.ManuallyCreated,
	}
}

func tupleInSet(set []types.Identity, needle types.Identity) bool {
	for _, candidate := range set {
		if candidate.SameTuple(needle) {
			return true
		}
	}
	return false
}

func usernameTuples(identities []types.Identity) []entityrepo.IdentityTuple {
	var tuples []entityrepo.IdentityTuple
	seen := make(map[string]struct{}, len(identities))
	for _, identity := range identities {
		if identity.Type != types.IdentityTypeUsername {
			continue
		}
		key := strings.ToLower(identity.Platform) + "\x00" + identity.Value
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tuples = append(tuples, entityrepo.IdentityTuple{Platform: identity.Platform, Username: identity.Value})
	}
	return tuples
}
