package services

import (
	types "github.com/openmesh-labs/identityhub/internal/domain"
)

// IdentityPlan is the outcome of reconciling two identity sets before a
// merge. ToMove rows change ownership to the primary; ToUpgrade rows
// already exist on the primary unverified and only gain the verified flag.
// Nothing is ever planned for deletion, so replaying the ledger backup can
// restore exact prior ownership.
type IdentityPlan struct {
	ToMove    []types.Identity
	ToUpgrade []types.Identity
}

// PlanIdentityMoves decides, per secondary identity, whether it relocates
// to the primary or upgrades the primary's existing copy in place. The
// secondary set is deduplicated first; the first occurrence of each
// (platform, type, value) tuple wins.
func PlanIdentityMoves(primary, secondary []types.Identity) IdentityPlan {
	var plan IdentityPlan

	seen := make(map[string]struct{}, len(secondary))
	for _, identity := range secondary {
		key := identity.TupleKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var existing *types.Identity
		for idx := range primary {
			if primary[idx].SameTuple(identity) {
				existing = &primary[idx]
				break
			}
		}

		if existing != nil {
			if !existing.Verified && identity.Verified {
				plan.ToUpgrade = append(plan.ToUpgrade, identity)
			}
			// Same tuple, no verification gain: the value already lives on
			// the primary and the secondary copy stays behind on the shell.
			continue
		}

		plan.ToMove = append(plan.ToMove, identity)
	}

	return plan
}
