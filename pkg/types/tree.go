package types

// LocalTree is the genealogical forest valid over one genomic interval
// between recombination breakpoints. Parent is indexed by node ID with
// NullNode for roots and for nodes absent from the interval. Trees are
// produced and discarded per interval; callers must not retain one past the
// next walker step.
type LocalTree struct {
	Interval  Interval
	Parent    []int64
	Children  map[int64][]int64
	Roots     []int64
	Mutations []Mutation // mutations at sites inside Interval
}

// Present reports whether the node participates in this interval, i.e. it
// carries at least one edge here as parent or child.
func (t *LocalTree) Present(node int64) bool {
	if node < 0 || node >= int64(len(t.Parent)) {
		return false
	}
	if t.Parent[node] != NullNode {
		return true
	}
	for _, r := range t.Roots {
		if r == node {
			return true
		}
	}
	return false
}
