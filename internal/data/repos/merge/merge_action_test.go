package merge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func addAction(t *testing.T, repo MergeActionRepo, dbc dbctx.Context, row *types.MergeAction) *types.MergeAction {
	t.Helper()
	out, err := repo.Add(dbc, row)
	if err != nil {
		t.Fatalf("add merge action: %v", err)
	}
	return out
}

func TestMergeActionRepoFindByPairIsOrderIndependent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewMergeActionRepo(db, testutil.Logger(t))

	p, s := uuid.New(), uuid.New()
	addAction(t, repo, dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   p,
		SecondaryID: s,
		State:       types.MergeStateInProgress,
		Step:        types.MergeStepStarted,
	})

	forward, err := repo.FindByPair(dbc, types.KindMember, p, s)
	if err != nil || forward == nil {
		t.Fatalf("forward lookup failed: %v", err)
	}
	reverse, err := repo.FindByPair(dbc, types.KindMember, s, p)
	if err != nil || reverse == nil {
		t.Fatalf("reverse lookup failed: %v", err)
	}
	if forward.ID != reverse.ID {
		t.Fatal("pair lookup must ignore argument order")
	}
}

func TestMergeActionRepoPairGuardRejectsSecondInProgress(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewMergeActionRepo(db, testutil.Logger(t))

	p, s := uuid.New(), uuid.New()
	addAction(t, repo, dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   p,
		SecondaryID: s,
		State:       types.MergeStateInProgress,
		Step:        types.MergeStepStarted,
	})

	// Same pair, reversed roles: the partial unique index must reject it.
	_, err := repo.Add(dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   s,
		SecondaryID: p,
		State:       types.MergeStateInProgress,
		Step:        types.MergeStepStarted,
	})
	if err == nil {
		t.Fatal("expected unique violation for concurrent pair")
	}
}

func TestMergeActionRepoPairGuardAllowsNewAfterTerminal(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewMergeActionRepo(db, testutil.Logger(t))

	p, s := uuid.New(), uuid.New()
	first := addAction(t, repo, dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   p,
		SecondaryID: s,
		State:       types.MergeStateInProgress,
		Step:        types.MergeStepStarted,
	})

	if err := repo.UpdateFields(dbc, first.ID, map[string]interface{}{"state": types.MergeStateDone}); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	if _, err := repo.Add(dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   p,
		SecondaryID: s,
		State:       types.MergeStateInProgress,
		Step:        types.UnmergeStepStarted,
	}); err != nil {
		t.Fatalf("terminal rows must not block new operations: %v", err)
	}
}

func TestMergeActionRepoFindDoneBackupForIdentity(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewMergeActionRepo(db, testutil.Logger(t))

	p := uuid.New()
	backup := types.Backup{
		Secondary: types.EntitySnapshot{
			ID: uuid.New(),
			Identities: []types.Identity{{
				Platform: "github",
				Type:     types.IdentityTypeUsername,
				Value:    "alice",
				Verified: true,
			}},
		},
	}
	raw, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("marshal backup: %v", err)
	}

	addAction(t, repo, dbc, &types.MergeAction{
		TenantID:    uuid.New(),
		Type:        types.KindMember,
		PrimaryID:   p,
		SecondaryID: backup.Secondary.ID,
		State:       types.MergeStateDone,
		Step:        types.MergeStepSyncDone,
		Backup:      datatypes.JSON(raw),
	})

	found, err := repo.FindDoneBackupForIdentity(dbc, p, "github", types.IdentityTypeUsername, "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found == nil {
		t.Fatal("expected backup hit for contained identity")
	}

	miss, err := repo.FindDoneBackupForIdentity(dbc, p, "github", types.IdentityTypeUsername, "someone-else")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if miss != nil {
		t.Fatal("expected no hit for foreign identity")
	}
}
