package services

import (
	"testing"

	types "github.com/openmesh-labs/identityhub/internal/domain"
)

func ident(platform, value string, verified bool) types.Identity {
	return types.Identity{
		Platform: platform,
		Type:     types.IdentityTypeUsername,
		Value:    value,
		Verified: verified,
	}
}

func TestPlanIdentityMovesDisjointSetsAllMove(t *testing.T) {
	primary := []types.Identity{ident("github", "alice", true)}
	secondary := []types.Identity{
		ident("discord", "alice#1", true),
		ident("slack", "alice.s", false),
	}

	plan := PlanIdentityMoves(primary, secondary)

	if len(plan.ToMove) != 2 {
		t.Fatalf("expected 2 moves, got %d", len(plan.ToMove))
	}
	if len(plan.ToUpgrade) != 0 {
		t.Fatalf("expected no upgrades, got %d", len(plan.ToUpgrade))
	}
}

func TestPlanIdentityMovesVerifiedUpgrade(t *testing.T) {
	primary := []types.Identity{ident("github", "alice", false)}
	secondary := []types.Identity{ident("github", "alice", true)}

	plan := PlanIdentityMoves(primary, secondary)

	if len(plan.ToMove) != 0 {
		t.Fatalf("expected no moves, got %d", len(plan.ToMove))
	}
	if len(plan.ToUpgrade) != 1 {
		t.Fatalf("expected 1 upgrade, got %d", len(plan.ToUpgrade))
	}
	if plan.ToUpgrade[0].Value != "alice" {
		t.Fatalf("wrong upgrade tuple: %+v", plan.ToUpgrade[0])
	}
}

func TestPlanIdentityMovesDuplicateWithoutGainIsSkipped(t *testing.T) {
	for _, tc := range []struct {
		name              string
		primaryVerified   bool
		secondaryVerified bool
	}{
		{"both verified", true, true},
		{"both unverified", false, false},
		{"primary verified only", true, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			plan := PlanIdentityMoves(
				[]types.Identity{ident("github", "alice", tc.primaryVerified)},
				[]types.Identity{ident("github", "alice", tc.secondaryVerified)},
			)
			if len(plan.ToMove)+len(plan.ToUpgrade) != 0 {
				t.Fatalf("expected empty plan, got %+v", plan)
			}
		})
	}
}

func TestPlanIdentityMovesTupleMatchIsCaseInsensitiveOnPlatform(t *testing.T) {
	plan := PlanIdentityMoves(
		[]types.Identity{ident("GitHub", "alice", false)},
		[]types.Identity{ident("github", "alice", true)},
	)
	if len(plan.ToMove) != 0 || len(plan.ToUpgrade) != 1 {
		t.Fatalf("expected upgrade for case-differing platform, got %+v", plan)
	}
}

func TestPlanIdentityMovesSecondaryDuplicatesFirstWins(t *testing.T) {
	secondary := []types.Identity{
		ident("discord", "bob", false),
		ident("discord", "bob", true),
	}
	plan := PlanIdentityMoves(nil, secondary)

	if len(plan.ToMove) != 1 {
		t.Fatalf("expected 1 move after dedup, got %d", len(plan.ToMove))
	}
	if plan.ToMove[0].Verified {
		t.Fatalf("first occurrence should win, got %+v", plan.ToMove[0])
	}
}

func TestPlanIdentityMovesNeverPlansDeletion(t *testing.T) {
	primary := []types.Identity{
		ident("github", "alice", true),
		ident("discord", "alice#1", false),
	}
	secondary := []types.Identity{
		ident("github", "alice", false),
		ident("discord", "alice#1", true),
		ident("slack", "alice.s", true),
	}

	plan := PlanIdentityMoves(primary, secondary)

	// Every secondary tuple must be accounted for: moved, upgraded in
	// place, or already present on the primary. None may simply vanish.
	for _, sec := range secondary {
		covered := false
		for _, m := range plan.ToMove {
			if m.SameTuple(sec) {
				covered = true
			}
		}
		for _, u := range plan.ToUpgrade {
			if u.SameTuple(sec) {
				covered = true
			}
		}
		for _, p := range primary {
			if p.SameTuple(sec) {
				covered = true
			}
		}
		if !covered {
			t.Fatalf("tuple %s/%s lost by the plan", sec.Platform, sec.Value)
		}
	}
}
