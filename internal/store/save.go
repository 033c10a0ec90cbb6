package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Save writes the tables to a fresh artifact at path, replacing any
// existing file. Used to build fixtures and by upstream tooling; the
// imputation pipeline itself never rewrites its input.
func Save(path string, tables *types.Tables) error {
	_ = os.Remove(path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	defer db.Close()

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO genome (length) VALUES (?)`, tables.SequenceLength); err != nil {
		return fmt.Errorf("writing genome: %w", err)
	}
	if err := saveNodes(tx, tables); err != nil {
		return err
	}
	if err := saveEdges(tx, tables); err != nil {
		return err
	}
	if err := saveSites(tx, tables); err != nil {
		return err
	}
	if err := saveMutations(tx, tables); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save transaction: %w", err)
	}
	return nil
}

func saveNodes(tx *sql.Tx, tables *types.Tables) error {
	stmt, err := tx.Prepare(`INSERT INTO nodes (id, time, is_sample, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range tables.Nodes {
		md := make(map[string]any, len(n.Metadata)+1)
		for k, v := range n.Metadata {
			md[k] = v
		}
		if n.Lineage != "" {
			md["lineage"] = n.Lineage
		}
		encoded, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("encoding metadata for node %d: %w", n.ID, err)
		}
		isSample := 0
		if n.IsSample {
			isSample = 1
		}
		if _, err := stmt.Exec(n.ID, n.Time, isSample, string(encoded)); err != nil {
			return fmt.Errorf("writing node %d: %w", n.ID, err)
		}
	}
	return nil
}

func saveEdges(tx *sql.Tx, tables *types.Tables) error {
	stmt, err := tx.Prepare(`INSERT INTO edges (id, left, right, parent, child) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range tables.Edges {
		if _, err := stmt.Exec(e.ID, e.Left, e.Right, e.Parent, e.Child); err != nil {
			return fmt.Errorf("writing edge %d: %w", e.ID, err)
		}
	}
	return nil
}

func saveSites(tx *sql.Tx, tables *types.Tables) error {
	stmt, err := tx.Prepare(`INSERT INTO sites (id, position, ancestral_state) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing site insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range tables.Sites {
		if _, err := stmt.Exec(s.ID, s.Position, s.AncestralState); err != nil {
			return fmt.Errorf("writing site %d: %w", s.ID, err)
		}
	}
	return nil
}

func saveMutations(tx *sql.Tx, tables *types.Tables) error {
	stmt, err := tx.Prepare(`INSERT INTO mutations (id, site, node, derived_state, time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mutation insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range tables.Mutations {
		var t any
		if m.HasTime {
			t = m.Time
		}
		if _, err := stmt.Exec(m.ID, m.Site, m.Node, m.DerivedState, t); err != nil {
			return fmt.Errorf("writing mutation %d: %w", m.ID, err)
		}
	}
	return nil
}
