package types

import "errors"

// LabelUnknown is the assignment label for nodes with no lineage evidence.
const LabelUnknown = "unknown"

// Lineage definition errors.
var (
	ErrLineageNameEmpty     = errors.New("lineage name must not be empty")
	ErrLineageNameReserved  = errors.New("lineage name is reserved")
	ErrDefiningSetEmpty     = errors.New("lineage has no defining mutations")
	ErrDefiningStateEmpty   = errors.New("defining mutation state must not be empty")
	ErrDefiningSiteRepeated = errors.New("defining set repeats a site position")
)

// DefiningMutation is one (position, derived state) pair characteristic of
// a lineage.
type DefiningMutation struct {
	Position float64 `json:"position"`
	State    string  `json:"state"`
}

// Lineage is a named clade defined by a set of consensus mutations expected
// in all members.
type Lineage struct {
	Name      string             `json:"name"`
	Mutations []DefiningMutation `json:"mutations"`
}

// Validate checks that the lineage is usable as classification evidence.
// Returns a sentinel error from this package on failure.
func (l Lineage) Validate() error {
	if l.Name == "" {
		return ErrLineageNameEmpty
	}
	if l.Name == LabelUnknown {
		return ErrLineageNameReserved
	}
	if len(l.Mutations) == 0 {
		return ErrDefiningSetEmpty
	}
	seen := make(map[float64]bool, len(l.Mutations))
	for _, m := range l.Mutations {
		if m.State == "" {
			return ErrDefiningStateEmpty
		}
		if seen[m.Position] {
			return ErrDefiningSiteRepeated
		}
		seen[m.Position] = true
	}
	return nil
}
