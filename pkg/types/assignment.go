package types

// Confidence levels for a final lineage assignment.
const (
	ConfidenceUnanimous = "unanimous"
	ConfidenceMajority  = "majority"
	ConfidenceNone      = "none"
)

// validConfidence is the set of recognized confidence values.
var validConfidence = map[string]bool{
	ConfidenceUnanimous: true,
	ConfidenceMajority:  true,
	ConfidenceNone:      true,
}

// ValidConfidence reports whether the value is a recognized confidence level.
func ValidConfidence(c string) bool {
	return validConfidence[c]
}

// Diagnostic flags recorded on individual assignments. Non-fatal; surfaced
// in output metadata.
const (
	FlagUnobserved = "unobserved" // node appeared in zero local trees
	FlagTied       = "tied"       // top lineages tied, broken lexicographically
	FlagForced     = "forced"     // known sample label passed through
)

// Assignment is the final lineage decision for one node: the label, how the
// votes fell, and any diagnostics. Label is a catalog lineage name or
// LabelUnknown.
type Assignment struct {
	Node       int64
	Label      string
	Confidence string
	Support    int // local trees voting for Label
	Conflict   int // local trees voting for another lineage
	Flags      []string
}

// HasFlag reports whether the diagnostic flag is set.
func (a Assignment) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
