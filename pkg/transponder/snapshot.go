package transponder

import "maps"

// Snapshot is one complete read of an entity's state leaves. Drivers must
// return every state leaf they know for the entity; a partial read is a
// contract violation. Snapshots are value objects — the core never mutates
// a snapshot after it has been taken.
type Snapshot struct {
	Ref    Ref
	Leaves map[string]string
}

// NewSnapshot builds a Snapshot with a defensive copy of leaves.
func NewSnapshot(ref Ref, leaves map[string]string) Snapshot {
	cp := make(map[string]string, len(leaves))
	maps.Copy(cp, leaves)
	return Snapshot{Ref: ref, Leaves: cp}
}

// Get returns the value of a single leaf.
func (s Snapshot) Get(leaf string) (string, bool) {
	v, ok := s.Leaves[leaf]
	return v, ok
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return NewSnapshot(s.Ref, s.Leaves)
}

// ConfigDelta is a set of desired-config leaf changes for one entity.
// Set holds leaf assignments; Unset lists leaves reverted to their model
// default. A delta with a leaf in both Set and Unset is malformed; Merge
// never produces one.
type ConfigDelta struct {
	Set   map[string]string
	Unset []string
}

// Empty reports whether the delta carries no changes.
func (d ConfigDelta) Empty() bool {
	return len(d.Set) == 0 && len(d.Unset) == 0
}

// Merge combines d with a later delta, latest-wins per leaf. Neither
// receiver nor argument is modified.
func (d ConfigDelta) Merge(later ConfigDelta) ConfigDelta {
	out := ConfigDelta{Set: make(map[string]string, len(d.Set)+len(later.Set))}
	maps.Copy(out.Set, d.Set)

	unset := make(map[string]struct{}, len(d.Unset)+len(later.Unset))
	for _, leaf := range d.Unset {
		unset[leaf] = struct{}{}
	}

	for _, leaf := range later.Unset {
		delete(out.Set, leaf)
		unset[leaf] = struct{}{}
	}
	for leaf, v := range later.Set {
		delete(unset, leaf)
		out.Set[leaf] = v
	}

	out.Unset = make([]string, 0, len(unset))
	for leaf := range unset {
		out.Unset = append(out.Unset, leaf)
	}
	return out
}

// Apply projects the delta onto a desired-config leaf map, returning the
// resulting map. The input is not modified.
func (d ConfigDelta) Apply(desired map[string]string) map[string]string {
	out := make(map[string]string, len(desired)+len(d.Set))
	maps.Copy(out, desired)
	for _, leaf := range d.Unset {
		delete(out, leaf)
	}
	maps.Copy(out, d.Set)
	return out
}
