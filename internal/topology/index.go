// Package topology builds read-only lookup structures over a tree-sequence
// artifact: genomic breakpoints, per-child edge lists, per-site and
// per-node mutation lists, and the known sample lineage labels. The index
// is constructed once per run and never mutated afterwards.
package topology

import (
	"fmt"
	"sort"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Index is the fast-lookup view of one tree sequence. All slices are
// ordered at construction time; callers must not modify them.
type Index struct {
	tables *types.Tables

	breakpoints []float64 // union of edge boundaries, includes 0 and L

	// Edge orderings for the walker's interval-diff sweep.
	insertionOrder []int // edge indexes sorted by left ascending
	removalOrder   []int // edge indexes sorted by right ascending

	edgesByChild    map[int64][]int // incoming edges per child, sorted by left
	mutationsBySite [][]int         // per site, most recent first
	mutationsByNode map[int64][]int // per node, table order

	sampleLineages map[int64]string
}

// New validates the tables and builds the index. Structural defects are
// reported as errors wrapping types.ErrMalformedTopology; nothing is
// computed past the first defect found.
func New(tables *types.Tables) (*Index, error) {
	if err := validate(tables); err != nil {
		return nil, err
	}

	idx := &Index{
		tables:          tables,
		edgesByChild:    make(map[int64][]int),
		mutationsByNode: make(map[int64][]int),
		sampleLineages:  make(map[int64]string),
	}
	idx.buildBreakpoints()
	idx.buildEdgeOrders()
	idx.buildMutationIndexes()

	for _, n := range tables.Nodes {
		if n.IsSample && n.Lineage != "" {
			idx.sampleLineages[n.ID] = n.Lineage
		}
	}
	return idx, nil
}

// validate checks referential integrity and interval sanity. A child with
// overlapping incoming intervals would have two simultaneous parents, which
// the data model forbids.
func validate(tables *types.Tables) error {
	numNodes := int64(len(tables.Nodes))
	numSites := int64(len(tables.Sites))
	length := tables.SequenceLength

	for _, e := range tables.Edges {
		if e.Parent < 0 || e.Parent >= numNodes {
			return fmt.Errorf("%w: edge %d references unknown parent %d", types.ErrMalformedTopology, e.ID, e.Parent)
		}
		if e.Child < 0 || e.Child >= numNodes {
			return fmt.Errorf("%w: edge %d references unknown child %d", types.ErrMalformedTopology, e.ID, e.Child)
		}
		if e.Parent == e.Child {
			return fmt.Errorf("%w: edge %d is a self-loop on node %d", types.ErrMalformedTopology, e.ID, e.Child)
		}
		if e.Left >= e.Right {
			return fmt.Errorf("%w: edge %d has inverted interval [%g, %g)", types.ErrMalformedTopology, e.ID, e.Left, e.Right)
		}
		if e.Left < 0 || e.Right > length {
			return fmt.Errorf("%w: edge %d interval [%g, %g) outside genome [0, %g)", types.ErrMalformedTopology, e.ID, e.Left, e.Right, length)
		}
		if tables.Nodes[e.Parent].Time <= tables.Nodes[e.Child].Time {
			return fmt.Errorf("%w: edge %d parent %d is not older than child %d", types.ErrMalformedTopology, e.ID, e.Parent, e.Child)
		}
	}

	// Per-child interval overlap check.
	byChild := make(map[int64][]types.Edge)
	for _, e := range tables.Edges {
		byChild[e.Child] = append(byChild[e.Child], e)
	}
	for child, edges := range byChild {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Left < edges[j].Left })
		for i := 1; i < len(edges); i++ {
			if edges[i].Left < edges[i-1].Right {
				return fmt.Errorf("%w: node %d has two parents over [%g, %g)", types.ErrMalformedTopology, child, edges[i].Left, edges[i-1].Right)
			}
		}
	}

	var prev float64 = -1
	for _, s := range tables.Sites {
		if s.Position < 0 || s.Position >= length {
			return fmt.Errorf("%w: site %d position %g outside genome [0, %g)", types.ErrMalformedTopology, s.ID, s.Position, length)
		}
		if s.Position <= prev {
			return fmt.Errorf("%w: site %d position %g not increasing", types.ErrMalformedTopology, s.ID, s.Position)
		}
		prev = s.Position
	}

	for _, m := range tables.Mutations {
		if m.Site < 0 || m.Site >= numSites {
			return fmt.Errorf("%w: mutation %d references unknown site %d", types.ErrMalformedTopology, m.ID, m.Site)
		}
		if m.Node < 0 || m.Node >= numNodes {
			return fmt.Errorf("%w: mutation %d references unknown node %d", types.ErrMalformedTopology, m.ID, m.Node)
		}
	}
	return nil
}

// buildBreakpoints collects the union of all edge interval boundaries plus
// the genome ends, deduplicated and sorted.
func (idx *Index) buildBreakpoints() {
	seen := map[float64]bool{0: true, idx.tables.SequenceLength: true}
	for _, e := range idx.tables.Edges {
		seen[e.Left] = true
		seen[e.Right] = true
	}
	points := make([]float64, 0, len(seen))
	for p := range seen {
		points = append(points, p)
	}
	sort.Float64s(points)
	idx.breakpoints = points
}

func (idx *Index) buildEdgeOrders() {
	edges := idx.tables.Edges
	ins := make([]int, len(edges))
	rem := make([]int, len(edges))
	for i := range edges {
		ins[i] = i
		rem[i] = i
	}
	sort.SliceStable(ins, func(a, b int) bool { return edges[ins[a]].Left < edges[ins[b]].Left })
	sort.SliceStable(rem, func(a, b int) bool { return edges[rem[a]].Right < edges[rem[b]].Right })
	idx.insertionOrder = ins
	idx.removalOrder = rem

	for i, e := range edges {
		idx.edgesByChild[e.Child] = append(idx.edgesByChild[e.Child], i)
	}
	for _, list := range idx.edgesByChild {
		sort.SliceStable(list, func(a, b int) bool { return edges[list[a]].Left < edges[list[b]].Left })
	}
}

// buildMutationIndexes orders each site's mutations most recent first.
// Recorded times are authoritative (smaller time is more recent); rows
// without times fall back to reverse table order, since within a site the
// table lists parent mutations before their children.
func (idx *Index) buildMutationIndexes() {
	muts := idx.tables.Mutations
	idx.mutationsBySite = make([][]int, len(idx.tables.Sites))
	for i, m := range muts {
		idx.mutationsBySite[m.Site] = append(idx.mutationsBySite[m.Site], i)
		idx.mutationsByNode[m.Node] = append(idx.mutationsByNode[m.Node], i)
	}
	for _, list := range idx.mutationsBySite {
		sort.SliceStable(list, func(a, b int) bool {
			ma, mb := muts[list[a]], muts[list[b]]
			if ma.HasTime && mb.HasTime && ma.Time != mb.Time {
				return ma.Time < mb.Time
			}
			return ma.ID > mb.ID
		})
	}
}

// Tables returns the underlying tables. Read-only.
func (idx *Index) Tables() *types.Tables { return idx.tables }

// NumNodes returns the node count.
func (idx *Index) NumNodes() int { return len(idx.tables.Nodes) }

// Breakpoints returns the ordered genomic breakpoints, including 0 and the
// sequence length. Consecutive pairs delimit the local-tree intervals.
func (idx *Index) Breakpoints() []float64 { return idx.breakpoints }

// NumTrees returns the number of local-tree intervals.
func (idx *Index) NumTrees() int { return len(idx.breakpoints) - 1 }

// InsertionOrder returns edge indexes sorted by interval start.
func (idx *Index) InsertionOrder() []int { return idx.insertionOrder }

// RemovalOrder returns edge indexes sorted by interval end.
func (idx *Index) RemovalOrder() []int { return idx.removalOrder }

// EdgesByChild returns the incoming-edge indexes of a child node, sorted by
// interval start. Nil when the node has no incoming edges.
func (idx *Index) EdgesByChild(child int64) []int { return idx.edgesByChild[child] }

// MutationsBySite returns the mutation indexes at a site, most recent first.
func (idx *Index) MutationsBySite(site int64) []int {
	if site < 0 || site >= int64(len(idx.mutationsBySite)) {
		return nil
	}
	return idx.mutationsBySite[site]
}

// MutationsByNode returns the mutation indexes on a node's incoming edges,
// in table order.
func (idx *Index) MutationsByNode(node int64) []int { return idx.mutationsByNode[node] }

// SampleLineage returns the known lineage label of a sample node, and
// whether one is recorded.
func (idx *Index) SampleLineage(node int64) (string, bool) {
	label, ok := idx.sampleLineages[node]
	return label, ok
}

// SitePosition returns the genomic position of a site.
func (idx *Index) SitePosition(site int64) float64 {
	return idx.tables.Sites[site].Position
}

// HasSiteAt reports whether some site sits exactly at the position.
func (idx *Index) HasSiteAt(position float64) bool {
	sites := idx.tables.Sites
	i := sort.Search(len(sites), func(i int) bool { return sites[i].Position >= position })
	return i < len(sites) && sites[i].Position == position
}
