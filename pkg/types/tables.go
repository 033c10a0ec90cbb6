package types

import "errors"

// NullNode marks the absence of a node reference, e.g. the parent of a root
// in a local tree.
const NullNode int64 = -1

// Fatal input errors. Structural defects abort the run before any
// computation; schema conflicts abort at the output stage only.
var (
	ErrMalformedTopology = errors.New("malformed topology")
	ErrSchemaConflict    = errors.New("metadata schema conflict")
)

// Node is one node of the genealogy. Nodes are immutable in topology; the
// only attribute this system edits is the lineage metadata written by the
// editor. Lineage holds the known label of a sample node ("" when absent).
type Node struct {
	ID       int64
	Time     float64 // generations in the past
	IsSample bool
	Lineage  string
	Metadata map[string]any // decoded metadata JSON object, may be nil
}

// Edge records that Parent is the parent of Child over the half-open
// genomic interval [Left, Right). A child may have different parents in
// different intervals.
type Edge struct {
	ID     int64
	Left   float64
	Right  float64
	Parent int64
	Child  int64
}

// Site is a genomic position with its ancestral (reference) state.
type Site struct {
	ID             int64
	Position       float64
	AncestralState string
}

// Mutation places a derived state at a site on the edge above Node. Time is
// optional; HasTime reports whether it was recorded. Within a site,
// mutations appear in the table oldest first.
type Mutation struct {
	ID           int64
	Site         int64
	Node         int64
	DerivedState string
	Time         float64
	HasTime      bool
}

// Tables is the in-memory form of a tree-sequence artifact. Node IDs are
// dense: Nodes[i].ID == i.
type Tables struct {
	SequenceLength float64
	Nodes          []Node
	Edges          []Edge
	Sites          []Site
	Mutations      []Mutation
}

// Interval is a half-open genomic interval [Left, Right).
type Interval struct {
	Left  float64
	Right float64
}

// Span returns the genomic length of the interval.
func (iv Interval) Span() float64 {
	return iv.Right - iv.Left
}

// Contains reports whether the position falls inside the interval.
func (iv Interval) Contains(pos float64) bool {
	return pos >= iv.Left && pos < iv.Right
}
