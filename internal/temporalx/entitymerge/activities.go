package entitymerge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/realtime"
	"github.com/openmesh-labs/identityhub/internal/services"
)

type Activities struct {
	Log        *logger.Logger
	Entities   entityrepo.EntityRepo
	Activities entityrepo.ActivityRepo
	Actions    mergerepo.MergeActionRepo
	Search     services.SearchSyncService
	Notify     services.Notifier
}

// SweepResiduals re-points any activity rows still referencing the
// secondary. Writers racing the synchronous phase can land rows on the
// retired id; the batched relink is idempotent so reruns are safe.
func (a *Activities) SweepResiduals(ctx context.Context, in services.FinalizeRequest) error {
	dbc := dbctx.New(ctx)
	moved, err := a.Activities.RelinkOwner(dbc, in.SecondaryID, in.PrimaryID)
	if err != nil {
		return fmt.Errorf("sweep activity owners: %w", err)
	}
	movedObj, err := a.Activities.RelinkObject(dbc, in.SecondaryID, in.PrimaryID)
	if err != nil {
		return fmt.Errorf("sweep activity objects: %w", err)
	}
	if moved > 0 || movedObj > 0 {
		a.Log.Info("swept residual activities", "primary_id", in.PrimaryID, "secondary_id", in.SecondaryID, "owners", moved, "objects", movedObj)
	}
	return nil
}

// RetireSecondary soft-deletes the drained secondary shell. The row keeps
// its id so ledger backups and audit entries stay resolvable.
func (a *Activities) RetireSecondary(ctx context.Context, in services.FinalizeRequest) error {
	if err := a.Entities.SoftDeleteByID(dbctx.New(ctx), in.SecondaryID); err != nil {
		return fmt.Errorf("retire secondary %s: %w", in.SecondaryID, err)
	}
	return nil
}

// MarkDone flips the ledger row the synchronous phase opened, addressed by
// id: the same pair accumulates rows across its merge/unmerge history and
// the terminal rows among them must stay untouched.
func (a *Activities) MarkDone(ctx context.Context, in services.FinalizeRequest) error {
	return a.Actions.UpdateFields(dbctx.New(ctx), in.MergeActionID, map[string]interface{}{
		"state": types.MergeStateDone,
	})
}

func (a *Activities) MarkError(ctx context.Context, in services.FinalizeRequest, message string) error {
	return a.Actions.UpdateFields(dbctx.New(ctx), in.MergeActionID, map[string]interface{}{
		"state": types.MergeStateError,
		"error": message,
	})
}

// SearchSync refreshes the primary's search document and, after a merge,
// drops the secondary's. After an unmerge both entities get refreshed.
func (a *Activities) SearchSync(ctx context.Context, in services.FinalizeRequest, removeSecondary bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Search.TriggerSync(gctx, in.PrimaryID)
	})
	g.Go(func() error {
		if removeSecondary {
			return a.Search.TriggerRemove(gctx, in.SecondaryID)
		}
		return a.Search.TriggerSync(gctx, in.SecondaryID)
	})
	return g.Wait()
}

func (a *Activities) NotifyDone(ctx context.Context, in services.FinalizeRequest, event string) error {
	dbc := dbctx.New(ctx)
	msg := realtime.Message{
		Event:       event,
		ActorID:     in.ActorID,
		PrimaryID:   in.PrimaryID,
		SecondaryID: in.SecondaryID,
		Success:     true,
	}
	if primary, err := a.Entities.GetByID(dbc, in.PrimaryID); err == nil && primary != nil {
		msg.PrimaryDisplayName = primary.DisplayName
	}
	if secondary, err := a.Entities.GetByID(dbc, in.SecondaryID); err == nil && secondary != nil {
		msg.SecondaryDisplayName = secondary.DisplayName
	}
	a.Notify.Notify(ctx, msg)
	return nil
}
