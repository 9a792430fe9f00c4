package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func TestActivityRepoRelinkOwnerMovesEverything(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewActivityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	b := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "b")
	for i := 0; i < 3; i++ {
		testutil.SeedActivity(t, ctx, tx, a, "github", "alice")
	}
	for i := 0; i < 5; i++ {
		testutil.SeedActivity(t, ctx, tx, b, "discord", "bob")
	}

	moved, err := repo.RelinkOwner(dbc, b.ID, a.ID)
	if err != nil {
		t.Fatalf("relink: %v", err)
	}
	if moved != 5 {
		t.Fatalf("expected 5 rows relinked, got %d", moved)
	}

	total, err := repo.CountByOwner(dbc, a.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 8 {
		t.Fatalf("expected 8 activities on target, got %d", total)
	}

	left, err := repo.CountByOwner(dbc, b.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected source drained, got %d", left)
	}
}

func TestActivityRepoRelinkOwnerIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewActivityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	b := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "b")
	testutil.SeedActivity(t, ctx, tx, b, "github", "bob")

	if _, err := repo.RelinkOwner(dbc, b.ID, a.ID); err != nil {
		t.Fatalf("first relink: %v", err)
	}
	again, err := repo.RelinkOwner(dbc, b.ID, a.ID)
	if err != nil {
		t.Fatalf("second relink: %v", err)
	}
	if again != 0 {
		t.Fatalf("rerun must be a no-op, moved %d", again)
	}
}

func TestActivityRepoRelinkOwnerForIdentities(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewActivityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	merged := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "merged")
	split := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "split")
	testutil.SeedActivity(t, ctx, tx, merged, "github", "alice")
	testutil.SeedActivity(t, ctx, tx, merged, "github", "alice")
	testutil.SeedActivity(t, ctx, tx, merged, "discord", "alice#1")

	moved, err := repo.RelinkOwnerForIdentities(dbc, merged.ID, split.ID, []IdentityTuple{{Platform: "github", Username: "alice"}})
	if err != nil {
		t.Fatalf("relink: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 attributed rows moved, got %d", moved)
	}

	stay, err := repo.CountByOwner(dbc, merged.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if stay != 1 {
		t.Fatalf("unattributed activity must stay, got %d", stay)
	}
}

func TestActivityRepoRelinkObject(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewActivityRepo(db, testutil.Logger(t))

	tenant := uuid.New()
	a := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "a")
	b := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "b")
	other := testutil.SeedEntity(t, ctx, tx, tenant, types.KindMember, "other")

	act := testutil.SeedActivity(t, ctx, tx, other, "github", "carol")
	if err := tx.WithContext(ctx).Model(&types.Activity{}).Where("id = ?", act.ID).Update("object_entity_id", b.ID).Error; err != nil {
		t.Fatalf("seed object ref: %v", err)
	}

	moved, err := repo.RelinkObject(dbc, b.ID, a.ID)
	if err != nil {
		t.Fatalf("relink object: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 object ref moved, got %d", moved)
	}

	var got types.Activity
	if err := tx.WithContext(ctx).Where("id = ?", act.ID).Find(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ObjectEntityID == nil || *got.ObjectEntityID != a.ID {
		t.Fatalf("object ref not re-pointed: %v", got.ObjectEntityID)
	}
}
