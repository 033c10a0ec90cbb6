package editor

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-genomics/cladecall/internal/catalog"
	"github.com/mesh-genomics/cladecall/internal/impute"
	"github.com/mesh-genomics/cladecall/internal/store"
	"github.com/mesh-genomics/cladecall/internal/topology"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// fixture builds a small artifact on disk plus a two-lineage catalog and
// returns their paths.
func fixture(t *testing.T) (argPath, catalogPath string) {
	t.Helper()
	dir := t.TempDir()
	argPath = filepath.Join(dir, "arg.db")
	catalogPath = filepath.Join(dir, "lineages.jsonl")

	require.NoError(t, store.Save(argPath, &types.Tables{
		SequenceLength: 100,
		Nodes: []types.Node{
			{ID: 0, Time: 0, IsSample: true},
			{ID: 1, Time: 0, IsSample: true},
			{ID: 2, Time: 2},
		},
		Edges: []types.Edge{
			{ID: 0, Left: 0, Right: 100, Parent: 2, Child: 0},
			{ID: 1, Left: 0, Right: 100, Parent: 2, Child: 1},
		},
		Sites: []types.Site{
			{ID: 0, Position: 10, AncestralState: "A"},
			{ID: 1, Position: 20, AncestralState: "C"},
		},
		Mutations: []types.Mutation{
			{ID: 0, Site: 0, Node: 0, DerivedState: "T"},
			{ID: 1, Site: 1, Node: 0, DerivedState: "G"},
		},
	}))

	lines := `{"name": "A", "mutations": [{"position": 10, "state": "T"}]}
{"name": "B", "mutations": [{"position": 10, "state": "T"}, {"position": 20, "state": "G"}]}
`
	require.NoError(t, os.WriteFile(catalogPath, []byte(lines), 0o644))
	return argPath, catalogPath
}

// runPipeline imputes inputPath into outputPath and returns the frozen
// assignments.
func runPipeline(t *testing.T, inputPath, catalogPath, outputPath string, override bool) []types.Assignment {
	t.Helper()
	cfg := types.DefaultConfig()

	tables, err := store.Load(inputPath)
	require.NoError(t, err)
	idx, err := topology.New(tables)
	require.NoError(t, err)
	cat, _, err := catalog.Load(catalogPath, idx)
	require.NoError(t, err)
	engine, err := impute.New(idx, cat, cfg)
	require.NoError(t, err)
	st, err := engine.Run()
	require.NoError(t, err)

	opts := Options{Override: override, Config: cfg, CatalogPath: catalogPath}
	require.NoError(t, Write(inputPath, outputPath, tables, st, opts))

	assignments, err := st.Assignments()
	require.NoError(t, err)
	return assignments
}

func TestWriteEmbedsAssignments(t *testing.T) {
	argPath, catalogPath := fixture(t)
	outPath := filepath.Join(t.TempDir(), "out.db")

	assignments := runPipeline(t, argPath, catalogPath, outPath, false)

	out, err := store.Load(outPath)
	require.NoError(t, err)
	require.Len(t, out.Nodes, 3)

	// Leaf 0 carries both defining mutations.
	md := out.Nodes[0].Metadata
	assert.Equal(t, "B", md["imputed_lineage"])
	assert.Equal(t, types.ConfidenceUnanimous, md["confidence"])
	assert.Equal(t, float64(1), md["support"])
	assert.Equal(t, float64(0), md["conflict"])
	assert.Equal(t, "B", assignments[0].Label)

	// Leaf 1 has no mutation evidence.
	assert.Equal(t, types.LabelUnknown, out.Nodes[1].Metadata["imputed_lineage"])
	assert.Equal(t, types.ConfidenceNone, out.Nodes[1].Metadata["confidence"])

	// Every node carries an assignment.
	for _, n := range out.Nodes {
		assert.Contains(t, n.Metadata, "imputed_lineage")
		assert.Contains(t, n.Metadata, "confidence")
	}
}

func TestWriteLeavesTopologyUntouched(t *testing.T) {
	argPath, catalogPath := fixture(t)
	outPath := filepath.Join(t.TempDir(), "out.db")

	in, err := store.Load(argPath)
	require.NoError(t, err)
	runPipeline(t, argPath, catalogPath, outPath, false)
	out, err := store.Load(outPath)
	require.NoError(t, err)

	assert.Equal(t, in.SequenceLength, out.SequenceLength)
	assert.Equal(t, in.Edges, out.Edges)
	assert.Equal(t, in.Sites, out.Sites)
	assert.Equal(t, in.Mutations, out.Mutations)
	for i := range in.Nodes {
		assert.Equal(t, in.Nodes[i].Time, out.Nodes[i].Time)
		assert.Equal(t, in.Nodes[i].IsSample, out.Nodes[i].IsSample)
	}
}

func TestWriteAppendsProvenance(t *testing.T) {
	argPath, catalogPath := fixture(t)
	outPath := filepath.Join(t.TempDir(), "out.db")
	runPipeline(t, argPath, catalogPath, outPath, false)

	db, err := sql.Open("sqlite", outPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM provenance`).Scan(&count))
	assert.Equal(t, 1, count)

	var record string
	require.NoError(t, db.QueryRow(`SELECT record FROM provenance`).Scan(&record))
	assert.Contains(t, record, `"tool":"cladecall"`)
	assert.Contains(t, record, `"penalty":2`)
}

// Re-running the pipeline on an already-imputed artifact with the same
// catalog reproduces identical assignments.
func TestWriteIdempotent(t *testing.T) {
	argPath, catalogPath := fixture(t)
	dir := t.TempDir()
	firstOut := filepath.Join(dir, "first.db")
	secondOut := filepath.Join(dir, "second.db")

	first := runPipeline(t, argPath, catalogPath, firstOut, false)
	second := runPipeline(t, firstOut, catalogPath, secondOut, false)
	assert.Equal(t, first, second)

	a, err := store.Load(firstOut)
	require.NoError(t, err)
	b, err := store.Load(secondOut)
	require.NoError(t, err)
	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i].Metadata["imputed_lineage"], b.Nodes[i].Metadata["imputed_lineage"])
		assert.Equal(t, a.Nodes[i].Metadata["confidence"], b.Nodes[i].Metadata["confidence"])
	}
}

func TestWriteSchemaConflict(t *testing.T) {
	argPath, catalogPath := fixture(t)
	outPath := filepath.Join(t.TempDir(), "out.db")

	// Corrupt the lineage metadata field with an incompatible type.
	db, err := sql.Open("sqlite", argPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE nodes SET metadata = '{"imputed_lineage": 42}' WHERE id = 2`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tables, err := store.Load(argPath)
	require.NoError(t, err)
	idx, err := topology.New(tables)
	require.NoError(t, err)
	cat, _, err := catalog.Load(catalogPath, idx)
	require.NoError(t, err)
	engine, err := impute.New(idx, cat, types.DefaultConfig())
	require.NoError(t, err)
	st, err := engine.Run()
	require.NoError(t, err)

	err = Write(argPath, outPath, tables, st, Options{Config: types.DefaultConfig()})
	assert.ErrorIs(t, err, types.ErrSchemaConflict)
	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "no partial output on failure")

	// The override flag forces the replacement.
	err = Write(argPath, outPath, tables, st, Options{Override: true, Config: types.DefaultConfig()})
	require.NoError(t, err)
	out, err := store.Load(outPath)
	require.NoError(t, err)
	assert.IsType(t, "", out.Nodes[2].Metadata["imputed_lineage"])
}

func TestWriteRequiresFrozenStore(t *testing.T) {
	argPath, catalogPath := fixture(t)
	_ = catalogPath
	outPath := filepath.Join(t.TempDir(), "out.db")

	tables, err := store.Load(argPath)
	require.NoError(t, err)
	st := impute.NewStore(len(tables.Nodes))

	err = Write(argPath, outPath, tables, st, Options{Config: types.DefaultConfig()})
	assert.ErrorIs(t, err, impute.ErrStoreNotFrozen)
}
