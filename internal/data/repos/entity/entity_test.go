package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	types "github.com/openmesh-labs/identityhub/internal/domain"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func TestEntityRepoSoftDeleteHidesRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewEntityRepo(db, testutil.Logger(t))

	e := testutil.SeedEntity(t, ctx, tx, uuid.New(), types.KindMember, "ghost")
	if err := repo.SoftDeleteByID(dbc, e.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := repo.GetByID(dbc, e.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != nil {
		t.Fatal("soft-deleted row must be invisible to normal reads")
	}
}

func TestEntityRepoReviveRestoresSoftDeletedRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewEntityRepo(db, testutil.Logger(t))

	e := testutil.SeedEntity(t, ctx, tx, uuid.New(), types.KindMember, "shell")
	if err := repo.SoftDeleteByID(dbc, e.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	e.DisplayName = "restored"
	if err := repo.Revive(dbc, e); err != nil {
		t.Fatalf("revive: %v", err)
	}

	got, err := repo.GetByID(dbc, e.ID)
	if err != nil || got == nil {
		t.Fatalf("revived row missing: %v", err)
	}
	if got.DisplayName != "restored" {
		t.Fatalf("revive must apply the given state, got %q", got.DisplayName)
	}
}

func TestEntityRepoReviveCreatesUnknownRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.New(ctx).WithTx(tx)
	repo := NewEntityRepo(db, testutil.Logger(t))

	fresh := &types.Entity{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Kind:        types.KindMember,
		DisplayName: "brand new",
		Score:       -1,
	}
	if err := repo.Revive(dbc, fresh); err != nil {
		t.Fatalf("revive: %v", err)
	}

	got, err := repo.GetByID(dbc, fresh.ID)
	if err != nil || got == nil {
		t.Fatalf("created row missing: %v", err)
	}
	if got.DisplayName != "brand new" {
		t.Fatalf("unexpected row: %+v", got)
	}
}
