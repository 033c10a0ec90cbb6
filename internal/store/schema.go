// Package store reads and writes tree-sequence artifacts. An artifact is a
// SQLite database holding the genome length and the node, edge, site,
// mutation, and provenance tables of a succinct genealogy.
package store

// Schema DDL for all artifact tables.
const (
	createGenome = `CREATE TABLE genome (
    length REAL NOT NULL
);`

	createNodes = `CREATE TABLE nodes (
    id INTEGER PRIMARY KEY,
    time REAL NOT NULL,
    is_sample INTEGER NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}'
);`

	createEdges = `CREATE TABLE edges (
    id INTEGER PRIMARY KEY,
    left REAL NOT NULL,
    right REAL NOT NULL,
    parent INTEGER NOT NULL,
    child INTEGER NOT NULL
);`

	createSites = `CREATE TABLE sites (
    id INTEGER PRIMARY KEY,
    position REAL NOT NULL,
    ancestral_state TEXT NOT NULL
);`

	createMutations = `CREATE TABLE mutations (
    id INTEGER PRIMARY KEY,
    site INTEGER NOT NULL,
    node INTEGER NOT NULL,
    derived_state TEXT NOT NULL,
    time REAL
);`

	createProvenance = `CREATE TABLE provenance (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    record TEXT NOT NULL
);`
)

// Index DDL for the queries the topology index and walker issue.
const (
	idxEdgesChild    = `CREATE INDEX idx_edges_child ON edges(child);`
	idxEdgesLeft     = `CREATE INDEX idx_edges_left ON edges(left);`
	idxEdgesRight    = `CREATE INDEX idx_edges_right ON edges(right);`
	idxSitesPosition = `CREATE INDEX idx_sites_position ON sites(position);`
	idxMutationsSite = `CREATE INDEX idx_mutations_site ON mutations(site);`
	idxMutationsNode = `CREATE INDEX idx_mutations_node ON mutations(node);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createGenome,
	createNodes,
	createEdges,
	createSites,
	createMutations,
	createProvenance,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxEdgesChild,
	idxEdgesLeft,
	idxEdgesRight,
	idxSitesPosition,
	idxMutationsSite,
	idxMutationsNode,
}

// requiredTables lists the tables an artifact must contain to be loadable.
var requiredTables = []string{
	"genome",
	"nodes",
	"edges",
	"sites",
	"mutations",
}
