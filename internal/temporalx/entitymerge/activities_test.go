package entitymerge

import (
	"context"
	"testing"

	"github.com/google/uuid"

	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
	"github.com/openmesh-labs/identityhub/internal/services"
)

// A pair accumulates ledger rows across its merge/unmerge history. The
// finalizer's terminal writes must address the row the sync phase opened
// and leave the pair's older terminal rows alone.
func TestFinalizerTerminalWritesTargetSingleLedgerRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	actions := mergerepo.NewMergeActionRepo(tx, log)
	dbc := dbctx.New(context.Background()).WithTx(tx)

	tenant, primary, secondary := uuid.New(), uuid.New(), uuid.New()

	older, err := actions.Add(dbc, &types.MergeAction{
		TenantID:    tenant,
		Type:        types.KindMember,
		PrimaryID:   primary,
		SecondaryID: secondary,
		State:       types.MergeStateDone,
		Step:        types.MergeStepSyncDone,
	})
	if err != nil {
		t.Fatalf("seed done row: %v", err)
	}
	current, err := actions.Add(dbc, &types.MergeAction{
		TenantID:    tenant,
		Type:        types.KindMember,
		PrimaryID:   primary,
		SecondaryID: secondary,
		State:       types.MergeStateInProgress,
		Step:        types.UnmergeStepSyncDone,
	})
	if err != nil {
		t.Fatalf("seed in-progress row: %v", err)
	}

	a := &Activities{Log: log, Actions: actions}
	in := services.FinalizeRequest{
		MergeActionID: current.ID,
		TenantID:      tenant,
		Kind:          types.KindMember,
		PrimaryID:     primary,
		SecondaryID:   secondary,
	}

	if err := a.MarkError(context.Background(), in, "finalizer gave up"); err != nil {
		t.Fatalf("mark error: %v", err)
	}

	got, err := actions.GetByID(dbc, current.ID)
	if err != nil || got == nil {
		t.Fatalf("reload current row: %v", err)
	}
	if got.State != types.MergeStateError {
		t.Fatalf("current row must be ERROR, got %s", got.State)
	}
	untouched, err := actions.GetByID(dbc, older.ID)
	if err != nil || untouched == nil {
		t.Fatalf("reload old row: %v", err)
	}
	if untouched.State != types.MergeStateDone {
		t.Fatalf("historical DONE row must stay DONE, got %s", untouched.State)
	}

	if err := a.MarkDone(context.Background(), in); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	got, err = actions.GetByID(dbc, current.ID)
	if err != nil || got == nil {
		t.Fatalf("reload current row: %v", err)
	}
	if got.State != types.MergeStateDone {
		t.Fatalf("current row must be DONE after retry, got %s", got.State)
	}
}
