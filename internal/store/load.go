package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Artifact loading errors.
var (
	ErrArtifactNotFound   = errors.New("artifact file not found")
	ErrTableMissing       = errors.New("artifact is missing a required table")
	ErrGenomeRow          = errors.New("genome table must contain exactly one positive-length row")
	ErrNodeIDsNotDense    = errors.New("node IDs must be dense starting at zero")
	ErrNodeMetadataNotJSON = errors.New("node metadata is not a JSON object")
)

// Load reads a tree-sequence artifact into memory. The artifact is never
// mutated in place. A sample node's known lineage label is taken from the
// "lineage" key of its metadata when that key holds a string.
func Load(path string) (*types.Tables, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer db.Close()

	if err := checkTables(db); err != nil {
		return nil, err
	}

	tables := &types.Tables{}
	if err := loadGenome(db, tables); err != nil {
		return nil, err
	}
	if err := loadNodes(db, tables); err != nil {
		return nil, err
	}
	if err := loadEdges(db, tables); err != nil {
		return nil, err
	}
	if err := loadSites(db, tables); err != nil {
		return nil, err
	}
	if err := loadMutations(db, tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// checkTables verifies that every required table exists.
func checkTables(db *sql.DB) error {
	for _, name := range requiredTables {
		var found string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTableMissing, name)
		}
		if err != nil {
			return fmt.Errorf("checking table %s: %w", name, err)
		}
	}
	return nil
}

func loadGenome(db *sql.DB, tables *types.Tables) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM genome`).Scan(&count); err != nil {
		return fmt.Errorf("counting genome rows: %w", err)
	}
	if count != 1 {
		return ErrGenomeRow
	}
	if err := db.QueryRow(`SELECT length FROM genome`).Scan(&tables.SequenceLength); err != nil {
		return fmt.Errorf("reading genome length: %w", err)
	}
	if tables.SequenceLength <= 0 {
		return ErrGenomeRow
	}
	return nil
}

func loadNodes(db *sql.DB, tables *types.Tables) error {
	rows, err := db.Query(`SELECT id, time, is_sample, metadata FROM nodes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n types.Node
		var isSample int
		var metadata string
		if err := rows.Scan(&n.ID, &n.Time, &isSample, &metadata); err != nil {
			return fmt.Errorf("scanning node: %w", err)
		}
		if n.ID != int64(len(tables.Nodes)) {
			return fmt.Errorf("%w: node %d at row %d", ErrNodeIDsNotDense, n.ID, len(tables.Nodes))
		}
		n.IsSample = isSample != 0

		var md map[string]any
		if err := json.Unmarshal([]byte(metadata), &md); err != nil {
			return fmt.Errorf("%w: node %d", ErrNodeMetadataNotJSON, n.ID)
		}
		n.Metadata = md
		if n.IsSample {
			if label, ok := md["lineage"].(string); ok {
				n.Lineage = label
			}
		}
		tables.Nodes = append(tables.Nodes, n)
	}
	return rows.Err()
}

func loadEdges(db *sql.DB, tables *types.Tables) error {
	rows, err := db.Query(`SELECT id, left, right, parent, child FROM edges ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e types.Edge
		if err := rows.Scan(&e.ID, &e.Left, &e.Right, &e.Parent, &e.Child); err != nil {
			return fmt.Errorf("scanning edge: %w", err)
		}
		tables.Edges = append(tables.Edges, e)
	}
	return rows.Err()
}

func loadSites(db *sql.DB, tables *types.Tables) error {
	rows, err := db.Query(`SELECT id, position, ancestral_state FROM sites ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading sites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s types.Site
		if err := rows.Scan(&s.ID, &s.Position, &s.AncestralState); err != nil {
			return fmt.Errorf("scanning site: %w", err)
		}
		tables.Sites = append(tables.Sites, s)
	}
	return rows.Err()
}

func loadMutations(db *sql.DB, tables *types.Tables) error {
	rows, err := db.Query(`SELECT id, site, node, derived_state, time FROM mutations ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading mutations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m types.Mutation
		var t sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Site, &m.Node, &m.DerivedState, &t); err != nil {
			return fmt.Errorf("scanning mutation: %w", err)
		}
		if t.Valid {
			m.Time = t.Float64
			m.HasTime = true
		}
		tables.Mutations = append(tables.Mutations, m)
	}
	return rows.Err()
}
