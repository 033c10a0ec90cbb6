// Command cladecall assigns lineage labels to the nodes of a tree-sequence
// encoded genealogy.
package main

import "github.com/mesh-genomics/cladecall/internal/cli"

func main() {
	cli.Execute()
}
