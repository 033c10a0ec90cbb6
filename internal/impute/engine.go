package impute

import (
	"fmt"
	"sync"

	"github.com/mesh-genomics/cladecall/internal/catalog"
	"github.com/mesh-genomics/cladecall/internal/topology"
	"github.com/mesh-genomics/cladecall/internal/walker"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Engine computes a lineage vote for every node in every local tree and
// reconciles the votes into final assignments. The topology index and
// catalog are read-only, so genomic windows can be processed by independent
// workers and merged afterwards.
type Engine struct {
	idx *topology.Index
	cat *catalog.Catalog
	cfg types.Config
}

// New validates the configuration and builds an engine.
func New(idx *topology.Index, cat *catalog.Catalog, cfg types.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{idx: idx, cat: cat, cfg: cfg}, nil
}

// Run processes every local tree, reconciles, and returns the frozen store.
// The breakpoint sequence is partitioned into contiguous windows, one per
// worker; each worker sweeps its window with a private walker and its own
// store, and the stores are merged single-threaded at the end.
func (e *Engine) Run() (*Store, error) {
	numTrees := e.idx.NumTrees()
	workers := e.cfg.Workers
	if workers > numTrees && numTrees > 0 {
		workers = numTrees
	}

	stores := make([]*Store, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * numTrees / workers
		end := (i + 1) * numTrees / workers
		stores[i] = NewStore(e.idx.NumNodes())
		wg.Add(1)
		go func(s *Store, start, end int) {
			defer wg.Done()
			e.processWindow(s, start, end)
		}(stores[i], start, end)
	}
	wg.Wait()

	main := NewStore(e.idx.NumNodes())
	for _, s := range stores {
		if err := main.Merge(s); err != nil {
			return nil, fmt.Errorf("merging window store: %w", err)
		}
	}
	e.injectKnownLabels(main)
	if err := main.Freeze(); err != nil {
		return nil, err
	}
	return main, nil
}

// injectKnownLabels forces known sample labels through as ground truth. In
// internal-only mode the labels still pass through; the samples were simply
// never voted on.
func (e *Engine) injectKnownLabels(s *Store) {
	for _, n := range e.idx.Tables().Nodes {
		if !n.IsSample {
			continue
		}
		if label, ok := e.idx.SampleLineage(n.ID); ok {
			_ = s.Force(n.ID, label)
		}
	}
}

// processWindow sweeps the local trees with index in [start, end) and
// records their votes in the window's store.
func (e *Engine) processWindow(s *Store, start, end int) {
	if start >= end {
		return
	}
	w := walker.New(e.idx)
	w.SeekTo(e.idx.Breakpoints()[start])
	for w.TreeIndex() < end {
		tree, ok := w.Next()
		if !ok {
			break
		}
		e.processTree(s, tree)
	}
}

// skipNode reports whether the node is excluded from voting: in
// internal-only mode every sample keeps its input state.
func (e *Engine) skipNode(node int64) bool {
	return e.cfg.InternalOnly && e.idx.Tables().Nodes[node].IsSample
}

// processTree computes every present node's effective mutation state by
// depth-first traversal from each root, scores the catalog against it, and
// records the local vote: the lineage (or tied set) with the maximum
// strictly positive score, or no evidence.
func (e *Engine) processTree(s *Store, tree *types.LocalTree) {
	mutsByNode := make(map[int64][]types.Mutation)
	for _, m := range tree.Mutations {
		mutsByNode[m.Node] = append(mutsByNode[m.Node], m)
	}

	span := tree.Interval.Span()
	effective := make(map[float64]string)
	var undo []undoEntry

	// Iterative DFS with an undo log: entering a node applies its
	// mutations (most-derived-wins: the entry nearest the node shadows
	// its ancestors'), leaving it restores the parent's state.
	type frame struct {
		node     int64
		childIdx int
		undoMark int
	}
	var stack []frame

	push := func(node int64) {
		mark := len(undo)
		for _, m := range mutsByNode[node] {
			pos := e.idx.SitePosition(m.Site)
			prev, had := effective[pos]
			undo = append(undo, undoEntry{pos: pos, prev: prev, had: had})
			effective[pos] = m.DerivedState
		}
		if e.skipNode(node) {
			// Observed but excluded from voting.
			_ = s.AddVote(node, nil, span)
		} else {
			e.vote(s, node, effective, span)
		}
		stack = append(stack, frame{node: node, childIdx: 0, undoMark: mark})
	}

	for _, root := range tree.Roots {
		push(root)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := tree.Children[top.node]
			if top.childIdx < len(children) {
				child := children[top.childIdx]
				top.childIdx++
				push(child)
				continue
			}
			// Unwind this node's mutations.
			for len(undo) > top.undoMark {
				u := undo[len(undo)-1]
				undo = undo[:len(undo)-1]
				if u.had {
					effective[u.pos] = u.prev
				} else {
					delete(effective, u.pos)
				}
			}
			stack = stack[:len(stack)-1]
		}
	}
}

type undoEntry struct {
	pos  float64
	prev string
	had  bool
}

// vote scores all lineages against the node's effective state and records
// the local vote. A maximum score that is not strictly positive is no
// evidence.
func (e *Engine) vote(s *Store, node int64, effective map[float64]string, span float64) {
	scores := e.cat.ScoreAll(effective, e.cfg.Penalty)

	best := 0.0
	var winners []string
	for _, sc := range scores {
		if sc.Value <= 0 {
			continue
		}
		switch {
		case sc.Value > best:
			best = sc.Value
			winners = winners[:0]
			winners = append(winners, sc.Name)
		case sc.Value == best:
			winners = append(winners, sc.Name)
		}
	}
	_ = s.AddVote(node, winners, span)
}
