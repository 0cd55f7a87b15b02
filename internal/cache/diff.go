package cache

import (
	"slices"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Change is one leaf that differs between two snapshots. Old is empty for
// an added leaf, New is empty for a removed one.
type Change struct {
	Leaf string
	Old  string
	New  string
}

// Diff compares two snapshots of the same entity and returns the changed
// leaves sorted by name. It is a pure function: the same inputs always
// produce the same change set, which is what makes notification
// de-duplication across cycles deterministic.
func Diff(old, new transponder.Snapshot) []Change {
	var changes []Change

	for leaf, nv := range new.Leaves {
		ov, ok := old.Leaves[leaf]
		if !ok || ov != nv {
			changes = append(changes, Change{Leaf: leaf, Old: ov, New: nv})
		}
	}
	for leaf, ov := range old.Leaves {
		if _, ok := new.Leaves[leaf]; !ok {
			changes = append(changes, Change{Leaf: leaf, Old: ov})
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		switch {
		case a.Leaf < b.Leaf:
			return -1
		case a.Leaf > b.Leaf:
			return 1
		default:
			return 0
		}
	})
	return changes
}

// Keys returns the leaf names of a change set, in order.
func Keys(changes []Change) []string {
	keys := make([]string, len(changes))
	for i, ch := range changes {
		keys[i] = ch.Leaf
	}
	return keys
}
