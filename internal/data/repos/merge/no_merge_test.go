package merge

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/data/repos/testutil"
	"github.com/openmesh-labs/identityhub/internal/pkg/dbctx"
)

func TestNoMergeRepoExistsIsSymmetric(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewNoMergeRepo(db, testutil.Logger(t))

	a, b := uuid.New(), uuid.New()
	if err := repo.Add(dbc, a, b); err != nil {
		t.Fatalf("add: %v", err)
	}

	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		ok, err := repo.Exists(dbc, pair[0], pair[1])
		if err != nil {
			t.Fatalf("exists: %v", err)
		}
		if !ok {
			t.Fatalf("pair (%s,%s) should be suppressed", pair[0], pair[1])
		}
	}

	ok, err := repo.Exists(dbc, a, uuid.New())
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("unrelated pair must not be suppressed")
	}
}

func TestNoMergeRepoAddIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.New(context.Background()).WithTx(tx)
	repo := NewNoMergeRepo(db, testutil.Logger(t))

	a, b := uuid.New(), uuid.New()
	if err := repo.Add(dbc, a, b); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := repo.Add(dbc, a, b); err != nil {
		t.Fatalf("repeat add must not fail: %v", err)
	}

	ids, err := repo.ListForEntity(dbc, a)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != b {
		t.Fatalf("expected single counterpart %s, got %v", b, ids)
	}
}
