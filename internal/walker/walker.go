// Package walker produces the sequence of local trees of a tree sequence,
// one per maximal genomic interval over which topology is constant. Each
// tree is derived from the previous one by applying only the edge
// insertions and removals active at the new breakpoint, so a full sweep
// costs O(edges) regardless of how many breakpoints the genome has.
package walker

import (
	"sort"

	"github.com/mesh-genomics/cladecall/internal/topology"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Walker is a restartable iterator over local trees. The *types.LocalTree
// returned by Next shares the walker's buffers and is invalidated by the
// following Next, Reset, or SeekTo call.
type Walker struct {
	idx *topology.Index

	parent     []int64
	children   map[int64][]int64
	childCount []int
	roots      map[int64]bool

	inserted int // cursor into the insertion order
	removed  int // cursor into the removal order
	treeIdx  int // next interval to emit
	siteIdx  int // next site to attach

	tree types.LocalTree
}

// New builds a walker positioned before the first interval.
func New(idx *topology.Index) *Walker {
	w := &Walker{idx: idx}
	w.Reset()
	return w
}

// Reset rewinds the walker to the first interval.
func (w *Walker) Reset() {
	n := w.idx.NumNodes()
	w.parent = make([]int64, n)
	for i := range w.parent {
		w.parent[i] = types.NullNode
	}
	w.children = make(map[int64][]int64)
	w.childCount = make([]int, n)
	w.roots = make(map[int64]bool)
	w.inserted = 0
	w.removed = 0
	w.treeIdx = 0
	w.siteIdx = 0
}

// TreeIndex returns the index of the interval the next call to Next will
// produce.
func (w *Walker) TreeIndex() int { return w.treeIdx }

// Next advances to the next interval and returns its local tree, or false
// when the genome is exhausted.
func (w *Walker) Next() (*types.LocalTree, bool) {
	bp := w.idx.Breakpoints()
	if w.treeIdx >= len(bp)-1 {
		return nil, false
	}
	w.step()
	return &w.tree, true
}

// SeekTo advances the walker, without emitting trees, until the next
// interval is the one containing pos. Seeking backwards restarts from the
// genome origin.
func (w *Walker) SeekTo(pos float64) {
	bp := w.idx.Breakpoints()
	if w.treeIdx < len(bp) && bp[w.treeIdx] > pos {
		w.Reset()
	}
	for w.treeIdx < len(bp)-1 && bp[w.treeIdx+1] <= pos {
		w.applyDiff(bp[w.treeIdx])
		w.treeIdx++
	}
	// Realign the site cursor with the new interval start.
	sites := w.idx.Tables().Sites
	left := bp[w.treeIdx]
	w.siteIdx = sort.Search(len(sites), func(i int) bool { return sites[i].Position >= left })
}

// step applies the edge diff at the current breakpoint and materializes the
// local tree for the interval it opens.
func (w *Walker) step() {
	bp := w.idx.Breakpoints()
	left := bp[w.treeIdx]
	right := bp[w.treeIdx+1]
	w.applyDiff(left)
	w.treeIdx++

	w.tree.Interval = types.Interval{Left: left, Right: right}
	w.tree.Parent = w.parent
	w.tree.Children = w.children

	w.tree.Roots = w.tree.Roots[:0]
	for node := range w.roots {
		w.tree.Roots = append(w.tree.Roots, node)
	}
	sort.Slice(w.tree.Roots, func(a, b int) bool { return w.tree.Roots[a] < w.tree.Roots[b] })

	w.attachMutations(left, right)
}

// applyDiff removes the edges ending at the breakpoint and inserts the
// edges starting there, keeping parent pointers, child lists, and the root
// set consistent. Only nodes touched by the diff can change root status.
func (w *Walker) applyDiff(at float64) {
	edges := w.idx.Tables().Edges
	removal := w.idx.RemovalOrder()
	insertion := w.idx.InsertionOrder()
	touched := make(map[int64]bool)

	for w.removed < len(removal) && edges[removal[w.removed]].Right <= at {
		e := edges[removal[w.removed]]
		w.parent[e.Child] = types.NullNode
		w.childCount[e.Parent]--
		w.dropChild(e.Parent, e.Child)
		touched[e.Child] = true
		touched[e.Parent] = true
		w.removed++
	}
	for w.inserted < len(insertion) && edges[insertion[w.inserted]].Left <= at {
		e := edges[insertion[w.inserted]]
		w.parent[e.Child] = e.Parent
		w.childCount[e.Parent]++
		w.children[e.Parent] = append(w.children[e.Parent], e.Child)
		touched[e.Child] = true
		touched[e.Parent] = true
		w.inserted++
	}

	for node := range touched {
		if w.childCount[node] > 0 && w.parent[node] == types.NullNode {
			w.roots[node] = true
		} else {
			delete(w.roots, node)
		}
	}
}

func (w *Walker) dropChild(parent, child int64) {
	list := w.children[parent]
	for i, c := range list {
		if c == child {
			list[i] = list[len(list)-1]
			w.children[parent] = list[:len(list)-1]
			return
		}
	}
}

// attachMutations collects the mutations whose site falls inside the
// interval, oldest first within each site so that later applications
// override earlier ones.
func (w *Walker) attachMutations(left, right float64) {
	tables := w.idx.Tables()
	w.tree.Mutations = w.tree.Mutations[:0]
	for w.siteIdx < len(tables.Sites) && tables.Sites[w.siteIdx].Position < right {
		site := tables.Sites[w.siteIdx]
		if site.Position >= left {
			list := w.idx.MutationsBySite(site.ID)
			for i := len(list) - 1; i >= 0; i-- {
				w.tree.Mutations = append(w.tree.Mutations, tables.Mutations[list[i]])
			}
		}
		w.siteIdx++
	}
}
