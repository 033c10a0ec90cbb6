// Package impute implements the core imputation algorithm: per-local-tree
// lineage votes for every node, and their reconciliation into one final
// assignment per node.
package impute

import (
	"errors"
	"sort"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Store errors.
var (
	ErrStoreFrozen    = errors.New("assignment store is frozen")
	ErrStoreNotFrozen = errors.New("assignment store is not frozen")
)

// tally accumulates the votes one node received across local trees. The
// reconciliation fold is commutative and associative, so tallies from
// independently processed genomic windows merge in any order.
type tally struct {
	trees   int                // local trees the node appeared in
	voted   int                // trees that produced a non-empty vote
	spans   map[string]float64 // lineage -> genomic span of supporting trees
	votes   map[string]int     // lineage -> trees voting for it (ties count for each)
	uniform bool               // every vote so far was a single, identical lineage
	first   string             // that lineage, when uniform
}

func newTally() *tally {
	return &tally{
		spans:   make(map[string]float64),
		votes:   make(map[string]int),
		uniform: true,
	}
}

// Store accumulates per-node vote tallies during engine processing and, once
// frozen, exposes the final assignments. One node may be updated many times
// as different local trees are processed.
type Store struct {
	numNodes    int
	tallies     map[int64]*tally
	forced      map[int64]string
	frozen      bool
	assignments []types.Assignment
}

// NewStore creates an empty store for a node table of the given size.
func NewStore(numNodes int) *Store {
	return &Store{
		numNodes: numNodes,
		tallies:  make(map[int64]*tally),
		forced:   make(map[int64]string),
	}
}

func (s *Store) tallyFor(node int64) *tally {
	t, ok := s.tallies[node]
	if !ok {
		t = newTally()
		s.tallies[node] = t
	}
	return t
}

// AddVote records one local tree's vote for a node. An empty lineage set
// means the tree observed the node but found no evidence. A set larger than
// one is a tied vote: each tied lineage receives the tree's span, and the
// node can no longer be unanimous.
func (s *Store) AddVote(node int64, lineages []string, span float64) error {
	if s.frozen {
		return ErrStoreFrozen
	}
	t := s.tallyFor(node)
	t.trees++
	if len(lineages) == 0 {
		return nil
	}
	t.voted++
	for _, name := range lineages {
		t.spans[name] += span
		t.votes[name]++
	}
	if len(lineages) > 1 {
		t.uniform = false
	} else if t.uniform {
		if t.first == "" {
			t.first = lineages[0]
		} else if t.first != lineages[0] {
			t.uniform = false
		}
	}
	return nil
}

// Force records a ground-truth label for a node. Forced labels carry
// infinite weight at reconciliation and pass through unchanged.
func (s *Store) Force(node int64, label string) error {
	if s.frozen {
		return ErrStoreFrozen
	}
	s.forced[node] = label
	return nil
}

// Merge folds another store's tallies into this one. Used to combine
// independently processed genomic windows; the result is independent of
// merge order.
func (s *Store) Merge(other *Store) error {
	if s.frozen {
		return ErrStoreFrozen
	}
	for node, ot := range other.tallies {
		t := s.tallyFor(node)
		t.trees += ot.trees
		t.voted += ot.voted
		for name, span := range ot.spans {
			t.spans[name] += span
		}
		for name, n := range ot.votes {
			t.votes[name] += n
		}
		switch {
		case !ot.uniform:
			t.uniform = false
		case ot.first == "":
			// other carries no votes; nothing to reconcile
		case t.first == "":
			t.first = ot.first
		case t.first != ot.first:
			t.uniform = false
		}
	}
	for node, label := range other.forced {
		s.forced[node] = label
	}
	return nil
}

// Freeze reconciles every node's tally into its final assignment and
// rejects all further updates. Every node in the table receives exactly one
// assignment, using types.LabelUnknown when no tree produced evidence.
func (s *Store) Freeze() error {
	if s.frozen {
		return ErrStoreFrozen
	}
	s.assignments = make([]types.Assignment, s.numNodes)
	for id := int64(0); id < int64(s.numNodes); id++ {
		s.assignments[id] = s.reconcile(id)
	}
	s.frozen = true
	return nil
}

// reconcile applies the weighted-majority fold for one node: unanimous when
// all non-empty votes agree, coverage-weighted plurality otherwise, with
// ties broken by lexicographically smallest lineage name.
func (s *Store) reconcile(node int64) types.Assignment {
	a := types.Assignment{Node: node, Label: types.LabelUnknown, Confidence: types.ConfidenceNone}
	t := s.tallies[node]

	if forced, ok := s.forced[node]; ok {
		a.Label = forced
		a.Confidence = types.ConfidenceUnanimous
		a.Flags = append(a.Flags, types.FlagForced)
		if t != nil {
			a.Support = t.votes[forced]
			a.Conflict = t.voted - a.Support
		}
		return a
	}

	if t == nil || t.trees == 0 {
		a.Flags = append(a.Flags, types.FlagUnobserved)
		return a
	}
	if t.voted == 0 {
		return a
	}

	winner, tied := maxSpan(t.spans)
	a.Label = winner
	if t.uniform {
		a.Confidence = types.ConfidenceUnanimous
	} else {
		a.Confidence = types.ConfidenceMajority
	}
	if tied {
		a.Flags = append(a.Flags, types.FlagTied)
	}
	a.Support = t.votes[winner]
	a.Conflict = t.voted - a.Support
	return a
}

// maxSpan returns the lineage with the largest accumulated span, breaking
// ties by lexicographically smallest name, and whether a tie occurred.
func maxSpan(spans map[string]float64) (string, bool) {
	names := make([]string, 0, len(spans))
	for name := range spans {
		names = append(names, name)
	}
	sort.Strings(names)

	winner := names[0]
	tied := false
	for _, name := range names[1:] {
		if spans[name] > spans[winner] {
			winner = name
			tied = false
		} else if spans[name] == spans[winner] {
			tied = true
		}
	}
	return winner, tied
}

// Frozen reports whether the store has been frozen.
func (s *Store) Frozen() bool { return s.frozen }

// Assignments returns the final per-node assignments, indexed by node ID.
// Returns ErrStoreNotFrozen before Freeze.
func (s *Store) Assignments() ([]types.Assignment, error) {
	if !s.frozen {
		return nil, ErrStoreNotFrozen
	}
	return s.assignments, nil
}
