// Package types defines the tree-sequence data model, lineage and
// assignment types, standard errors, and run configuration for cladecall.
package types
