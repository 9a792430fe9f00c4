package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func TestIdentityRepoMoveToEntity(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewIdentityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	b := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "b")
	moved := testutil.SeedIdentity(t, ctx, tx, b, "github", "bob", true)
	kept := testutil.SeedIdentity(t, ctx, tx, b, "discord", "bob#1", false)

	if err := repo.MoveToEntity(dbc, b.ID, a.ID, []types.Identity{*moved}); err != nil {
		t.Fatalf("move: %v", err)
	}

	got, err := repo.FindOwned(dbc, a.ID, "github", types.IdentityTypeUsername, "bob")
	if err != nil || got == nil {
		t.Fatalf("moved identity not found on target: %v", err)
	}
	if !got.Verified {
		t.Fatal("verified flag must survive the move")
	}
	if got.ID != moved.ID {
		t.Fatal("move must re-point the existing row, not recreate it")
	}

	still, err := repo.FindOwned(dbc, b.ID, "discord", types.IdentityTypeUsername, "bob#1")
	if err != nil || still == nil || still.ID != kept.ID {
		t.Fatalf("untouched identity must stay on source: %v %v", still, err)
	}
}

func TestIdentityRepoUpgradeVerified(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewIdentityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	b := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "b")
	testutil.SeedIdentity(t, ctx, tx, a, "github", "carol", false)
	dup := testutil.SeedIdentity(t, ctx, tx, b, "github", "carol", true)

	if err := repo.UpgradeVerified(dbc, b.ID, a.ID, []types.Identity{*dup}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	onTarget, err := repo.FindOwned(dbc, a.ID, "github", types.IdentityTypeUsername, "carol")
	if err != nil || onTarget == nil {
		t.Fatalf("target copy missing: %v", err)
	}
	if !onTarget.Verified {
		t.Fatal("target copy must become verified")
	}

	// The source duplicate is demoted, never deleted: both rows survive.
	onSource, err := repo.FindOwned(dbc, b.ID, "github", types.IdentityTypeUsername, "carol")
	if err != nil {
		t.Fatalf("source lookup: %v", err)
	}
	if onSource == nil {
		t.Fatal("source duplicate must survive the upgrade")
	}
	if onSource.ID != dup.ID {
		t.Fatal("source copy must keep its row, not be recreated")
	}
	if onSource.Verified {
		t.Fatal("source copy must be demoted to unverified")
	}

	var total int64
	if err := tx.Model(&types.Identity{}).
		Where("entity_id IN ?", []uuid.UUID{a.ID, b.ID}).
		Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("upgrade must not change the row count, got %d", total)
	}
}

func TestIdentityRepoSetVerified(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewIdentityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	row := testutil.SeedIdentity(t, ctx, tx, a, "github", "dave", true)

	if err := repo.SetVerified(dbc, a.ID, *row, false); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	got, err := repo.FindOwned(dbc, a.ID, "github", types.IdentityTypeUsername, "dave")
	if err != nil || got == nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Verified {
		t.Fatal("flag should be cleared")
	}
}
