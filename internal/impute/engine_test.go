package impute

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-genomics/cladecall/internal/catalog"
	"github.com/mesh-genomics/cladecall/internal/topology"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// recombinantTables builds the two-interval genealogy shared by the engine
// tests. Node 3 carries the site-10 mutation, so on [0, 50) both leaves 0
// and 1 inherit it; leaf 0 additionally carries the site-20 mutation.
func recombinantTables() *types.Tables {
	return &types.Tables{
		SequenceLength: 100,
		Nodes: []types.Node{
			{ID: 0, Time: 0, IsSample: true},
			{ID: 1, Time: 0, IsSample: true},
			{ID: 2, Time: 0, IsSample: true},
			{ID: 3, Time: 1},
			{ID: 4, Time: 2},
		},
		Edges: []types.Edge{
			{ID: 0, Left: 0, Right: 100, Parent: 3, Child: 0},
			{ID: 1, Left: 0, Right: 50, Parent: 3, Child: 1},
			{ID: 2, Left: 50, Right: 100, Parent: 4, Child: 1},
			{ID: 3, Left: 0, Right: 100, Parent: 4, Child: 3},
			{ID: 4, Left: 0, Right: 100, Parent: 4, Child: 2},
		},
		Sites: []types.Site{
			{ID: 0, Position: 10, AncestralState: "A"},
			{ID: 1, Position: 20, AncestralState: "C"},
			{ID: 2, Position: 60, AncestralState: "G"},
		},
		Mutations: []types.Mutation{
			{ID: 0, Site: 0, Node: 3, DerivedState: "T"},
			{ID: 1, Site: 1, Node: 0, DerivedState: "G"},
			{ID: 2, Site: 2, Node: 1, DerivedState: "T"},
		},
	}
}

// twoLineageCatalog defines A by site 10 -> T and B by sites 10 -> T and
// 20 -> G.
func twoLineageCatalog(t *testing.T, idx *topology.Index) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lineages.jsonl")
	lines := `{"name": "A", "mutations": [{"position": 10, "state": "T"}]}
{"name": "B", "mutations": [{"position": 10, "state": "T"}, {"position": 20, "state": "G"}]}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	cat, warnings, err := catalog.Load(path, idx)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return cat
}

func runEngine(t *testing.T, tables *types.Tables, cfg types.Config) []types.Assignment {
	t.Helper()
	idx, err := topology.New(tables)
	require.NoError(t, err)
	cat := twoLineageCatalog(t, idx)
	engine, err := New(idx, cat, cfg)
	require.NoError(t, err)
	st, err := engine.Run()
	require.NoError(t, err)
	assignments, err := st.Assignments()
	require.NoError(t, err)
	return assignments
}

func TestEngineSupersetOutscoresSubset(t *testing.T) {
	assignments := runEngine(t, recombinantTables(), types.DefaultConfig())

	// Leaf 0 inherits both defining mutations: B's full set outscores A.
	leaf := assignments[0]
	assert.Equal(t, "B", leaf.Label)
	assert.Equal(t, types.ConfidenceUnanimous, leaf.Confidence)
	assert.Equal(t, 1, leaf.Support)
	assert.Equal(t, 0, leaf.Conflict)

	// Leaf 1 inherits only the site-10 mutation: A and B tie and the
	// lexicographic rule picks A.
	assert.Equal(t, "A", assignments[1].Label)
	assert.Equal(t, types.ConfidenceMajority, assignments[1].Confidence)
	assert.True(t, assignments[1].HasFlag(types.FlagTied))

	// The internal node carrying the mutation itself votes the same way.
	assert.Equal(t, "A", assignments[3].Label)

	// Nodes with no evidence in any tree stay unknown.
	assert.Equal(t, types.LabelUnknown, assignments[2].Label)
	assert.Equal(t, types.ConfidenceNone, assignments[2].Confidence)
	assert.Equal(t, types.LabelUnknown, assignments[4].Label)
}

func TestEngineEveryNodeAssigned(t *testing.T) {
	tables := recombinantTables()
	assignments := runEngine(t, tables, types.DefaultConfig())

	require.Len(t, assignments, len(tables.Nodes))
	for id, a := range assignments {
		assert.Equal(t, int64(id), a.Node)
		assert.True(t, a.Label == types.LabelUnknown || a.Label == "A" || a.Label == "B",
			"node %d has label %q", id, a.Label)
		assert.True(t, types.ValidConfidence(a.Confidence))
	}
}

func TestEngineKnownSampleLabelPassesThrough(t *testing.T) {
	tables := recombinantTables()
	// Leaf 0's mutation evidence says B; its known label says A.
	tables.Nodes[0].Lineage = "A"

	assignments := runEngine(t, tables, types.DefaultConfig())
	a := assignments[0]
	assert.Equal(t, "A", a.Label)
	assert.Equal(t, types.ConfidenceUnanimous, a.Confidence)
	assert.True(t, a.HasFlag(types.FlagForced))
	assert.Equal(t, 1, a.Conflict, "the B vote is recorded as conflicting")
}

func TestEngineInternalOnly(t *testing.T) {
	tables := recombinantTables()
	tables.Nodes[1].Lineage = "B"

	cfg := types.DefaultConfig()
	cfg.InternalOnly = true
	assignments := runEngine(t, tables, cfg)

	// The labeled sample keeps its label and received no votes.
	labeled := assignments[1]
	assert.Equal(t, "B", labeled.Label)
	assert.True(t, labeled.HasFlag(types.FlagForced))
	assert.Equal(t, 0, labeled.Support)
	assert.Equal(t, 0, labeled.Conflict)

	// Unlabeled samples are not imputed in this mode.
	assert.Equal(t, types.LabelUnknown, assignments[0].Label)
	assert.Equal(t, types.ConfidenceNone, assignments[0].Confidence)

	// Internal nodes are still imputed.
	assert.Equal(t, "A", assignments[3].Label)
}

func TestEngineDeterministic(t *testing.T) {
	first := runEngine(t, recombinantTables(), types.DefaultConfig())
	second := runEngine(t, recombinantTables(), types.DefaultConfig())
	assert.Equal(t, first, second)
}

// Partitioning the genome across workers must not change any assignment:
// reconciliation is a commutative fold over per-window votes.
func TestEngineWorkerCountInvariant(t *testing.T) {
	base := runEngine(t, recombinantTables(), types.DefaultConfig())
	for _, workers := range []int{2, 3, 8} {
		cfg := types.DefaultConfig()
		cfg.Workers = workers
		assert.Equal(t, base, runEngine(t, recombinantTables(), cfg), "workers=%d", workers)
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	idx, err := topology.New(recombinantTables())
	require.NoError(t, err)
	cat := twoLineageCatalog(t, idx)

	_, err = New(idx, cat, types.Config{Penalty: 0.5, Workers: 1})
	assert.ErrorIs(t, err, types.ErrPenaltyTooLow)
}

// A later mutation at the same site on the path shadows the ancestral one.
func TestEngineMostDerivedWins(t *testing.T) {
	tables := recombinantTables()
	// Leaf 1 reverts site 10 back toward a different state under node 3's
	// T: its effective state contradicts both lineages at site 10.
	tables.Mutations = append(tables.Mutations, types.Mutation{
		ID: 3, Site: 0, Node: 1, DerivedState: "C",
	})

	assignments := runEngine(t, tables, types.DefaultConfig())
	assert.Equal(t, types.LabelUnknown, assignments[1].Label)
	// Leaf 0 is unaffected by its sibling's mutation.
	assert.Equal(t, "B", assignments[0].Label)
}
