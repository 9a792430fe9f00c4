package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func TestSegmentRepoAddIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewSegmentRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background()).WithTx(tx)

	tenant, entity := uuid.New(), uuid.New()
	segA, segB := uuid.New(), uuid.New()

	if err := repo.AddMemberships(dbc, tenant, entity, []uuid.UUID{segA, segB}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddMemberships(dbc, tenant, entity, []uuid.UUID{segA}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	got, err := repo.ListSegmentIDs(dbc, entity)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(got))
	}
}

func TestSegmentRepoMoveCollapsesDuplicates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewSegmentRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background()).WithTx(tx)

	tenant := uuid.New()
	from, to := uuid.New(), uuid.New()
	shared, onlyFrom := uuid.New(), uuid.New()

	if err := repo.AddMemberships(dbc, tenant, from, []uuid.UUID{shared, onlyFrom}); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if err := repo.AddMemberships(dbc, tenant, to, []uuid.UUID{shared}); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	if err := repo.MoveMemberships(dbc, from, to); err != nil {
		t.Fatalf("move: %v", err)
	}

	targetSegs, err := repo.ListSegmentIDs(dbc, to)
	if err != nil {
		t.Fatalf("list target: %v", err)
	}
	if len(targetSegs) != 2 {
		t.Fatalf("expected 2 memberships on target, got %d", len(targetSegs))
	}
	sourceSegs, err := repo.ListSegmentIDs(dbc, from)
	if err != nil {
		t.Fatalf("list source: %v", err)
	}
	if len(sourceSegs) != 0 {
		t.Fatalf("expected drained source, got %d", len(sourceSegs))
	}
}
