// Package editor writes frozen lineage assignments back into a new
// tree-sequence artifact. The output is a byte-for-byte copy of the input
// in which only the node metadata is edited and one provenance row is
// appended; topology, times, sites, and mutations are untouched.
package editor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-genomics/cladecall/internal/impute"
	"github.com/mesh-genomics/cladecall/pkg/cladecall"
	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Options controls the write-back.
type Options struct {
	// Override permits replacing a pre-existing lineage metadata value of
	// an incompatible type instead of failing with ErrSchemaConflict.
	Override bool
	// Config is recorded in the provenance row.
	Config types.Config
	// CatalogPath is recorded in the provenance row.
	CatalogPath string
}

// Write produces the output artifact at outputPath from the input at
// inputPath and the frozen store. The file appears atomically: all edits
// happen on a temp copy which is renamed into place, so an aborted run
// leaves no partial output. Returns types.ErrSchemaConflict if a node
// already carries a non-string "imputed_lineage" metadata value and
// Override is not set.
func Write(inputPath, outputPath string, tables *types.Tables, store *impute.Store, opts Options) error {
	assignments, err := store.Assignments()
	if err != nil {
		return err
	}

	if !opts.Override {
		if err := checkSchema(tables); err != nil {
			return err
		}
	}

	tmpPath, err := copyToTemp(inputPath, filepath.Dir(outputPath))
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := applyEdits(tmpPath, tables, assignments, opts); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("placing output artifact: %w", err)
	}
	return nil
}

// checkSchema rejects inputs whose existing node metadata uses the
// imputed_lineage field incompatibly. A string value (e.g. from a previous
// run) is compatible and simply overwritten.
func checkSchema(tables *types.Tables) error {
	for _, n := range tables.Nodes {
		v, ok := n.Metadata["imputed_lineage"]
		if !ok {
			continue
		}
		if _, isString := v.(string); !isString {
			return fmt.Errorf("%w: node %d imputed_lineage metadata is not a string", types.ErrSchemaConflict, n.ID)
		}
	}
	return nil
}

// copyToTemp duplicates the input artifact into a temp file in the output
// directory, synced to disk.
func copyToTemp(inputPath, dir string) (string, error) {
	src, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("opening input artifact: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".cladecall-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("copying artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp artifact: %w", err)
	}
	return tmpPath, nil
}

// applyEdits rewrites each node's metadata with its assignment and appends
// the provenance row, in one transaction.
func applyEdits(path string, tables *types.Tables, assignments []types.Assignment, opts Options) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening temp artifact: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(createProvenanceIfMissing); err != nil {
		return fmt.Errorf("ensuring provenance table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning edit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE nodes SET metadata = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing metadata update: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		encoded, err := mergeMetadata(tables.Nodes[a.Node].Metadata, a)
		if err != nil {
			return fmt.Errorf("encoding metadata for node %d: %w", a.Node, err)
		}
		if _, err := stmt.Exec(encoded, a.Node); err != nil {
			return fmt.Errorf("updating node %d: %w", a.Node, err)
		}
	}

	if err := appendProvenance(tx, opts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edits: %w", err)
	}
	return nil
}

const createProvenanceIfMissing = `CREATE TABLE IF NOT EXISTS provenance (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    record TEXT NOT NULL
);`

// mergeMetadata layers the assignment onto the node's existing metadata
// object, preserving unrelated keys, in particular the "lineage" key
// carrying a sample's known input label. Stale assignment keys from
// earlier runs are replaced wholesale so that reruns converge.
func mergeMetadata(existing map[string]any, a types.Assignment) (string, error) {
	md := make(map[string]any, len(existing)+5)
	for k, v := range existing {
		md[k] = v
	}
	md["imputed_lineage"] = a.Label
	md["confidence"] = a.Confidence
	md["support"] = a.Support
	md["conflict"] = a.Conflict
	if len(a.Flags) > 0 {
		md["flags"] = a.Flags
	} else {
		delete(md, "flags")
	}
	encoded, err := json.Marshal(md)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// appendProvenance records the run: tool, version, parameters, and a fresh
// run ID.
func appendProvenance(tx *sql.Tx, opts Options) error {
	record := map[string]any{
		"tool":    "cladecall",
		"version": cladecall.Version,
		"parameters": map[string]any{
			"penalty":       opts.Config.Penalty,
			"internal_only": opts.Config.InternalOnly,
			"workers":       opts.Config.Workers,
			"catalog":       opts.CatalogPath,
		},
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding provenance: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO provenance (id, timestamp, record) VALUES (?, ?, ?)`,
		newRunID(), time.Now().UTC().Format(time.RFC3339), string(encoded),
	)
	if err != nil {
		return fmt.Errorf("writing provenance: %w", err)
	}
	return nil
}

// newRunID generates a UUID v7 run identifier.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
