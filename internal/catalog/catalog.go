// Package catalog loads and validates the consensus-mutation definitions
// that map lineage names to their defining (site, derived-state) pairs, and
// scores candidate lineages against a node's effective mutation state.
package catalog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mesh-genomics/cladecall/pkg/types"
)

// Catalog errors.
var (
	ErrCatalogNotFound = errors.New("lineage catalog file not found")
	ErrCatalogEmpty    = errors.New("lineage catalog defines no lineages")
	ErrDuplicateName   = errors.New("lineage name defined twice")
)

// Sites answers whether a genomic position carries a site in the tree
// sequence. Satisfied by the topology index.
type Sites interface {
	HasSiteAt(position float64) bool
}

// Warning records a non-fatal catalog issue, e.g. a defining mutation at a
// position with no site in the tree sequence. Such positions contribute no
// evidence but do not invalidate the lineage.
type Warning struct {
	Lineage string
	Message string
}

func (w Warning) String() string {
	if w.Lineage == "" {
		return w.Message
	}
	return fmt.Sprintf("lineage %s: %s", w.Lineage, w.Message)
}

// Catalog is the validated, read-only set of lineage definitions.
type Catalog struct {
	names    []string                      // sorted, for deterministic iteration
	defining map[string]map[float64]string // name -> position -> expected state
}

// Score is the weighted match of one lineage against an effective state.
type Score struct {
	Name           string
	Matches        int
	Contradictions int
	Value          float64
}

// Load parses a JSONL catalog, one lineage object per line:
//
//	{"name": "B.1", "mutations": [{"position": 10, "state": "T"}]}
//
// Blank and malformed lines are skipped and reported as warnings. Invalid
// lineage records (empty name, empty defining set, repeated positions) are
// fatal. Defining positions with no matching site are reported as warnings
// and dropped from the lineage's evidence.
func Load(path string, sites Sites) (*Catalog, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
	}
	defer f.Close()

	var warnings []Warning
	cat := &Catalog{defining: make(map[string]map[float64]string)}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var lin types.Lineage
		if err := json.Unmarshal(line, &lin); err != nil {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("line %d: skipping malformed record", lineNum),
			})
			continue
		}
		if err := lin.Validate(); err != nil {
			return nil, warnings, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, ok := cat.defining[lin.Name]; ok {
			return nil, warnings, fmt.Errorf("%w: %s", ErrDuplicateName, lin.Name)
		}

		def := make(map[float64]string, len(lin.Mutations))
		for _, m := range lin.Mutations {
			if !sites.HasSiteAt(m.Position) {
				warnings = append(warnings, Warning{
					Lineage: lin.Name,
					Message: fmt.Sprintf("no site at position %g; pair ignored", m.Position),
				})
				continue
			}
			def[m.Position] = m.State
		}
		cat.defining[lin.Name] = def
		cat.names = append(cat.names, lin.Name)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("reading catalog: %w", err)
	}
	if len(cat.names) == 0 {
		return nil, warnings, ErrCatalogEmpty
	}
	sort.Strings(cat.names)
	return cat, warnings, nil
}

// Names returns the lineage names in lexicographic order.
func (c *Catalog) Names() []string { return c.names }

// Len returns the number of lineages.
func (c *Catalog) Len() int { return len(c.names) }

// Has reports whether the name is a catalog lineage.
func (c *Catalog) Has(name string) bool {
	_, ok := c.defining[name]
	return ok
}

// ScoreAll scores every lineage against an effective mutation state, keyed
// by position. A defining pair matches when the effective state carries the
// expected derived state at that position; it contradicts when the
// effective state carries a different derived state there. Absence is
// neutral. Value = matches - penalty*contradictions. Results are in
// lexicographic name order.
func (c *Catalog) ScoreAll(effective map[float64]string, penalty float64) []Score {
	scores := make([]Score, 0, len(c.names))
	for _, name := range c.names {
		s := Score{Name: name}
		for pos, want := range c.defining[name] {
			got, ok := effective[pos]
			if !ok {
				continue
			}
			if got == want {
				s.Matches++
			} else {
				s.Contradictions++
			}
		}
		s.Value = float64(s.Matches) - penalty*float64(s.Contradictions)
		scores = append(scores, s)
	}
	return scores
}
