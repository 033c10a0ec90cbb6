package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidConfidence(t *testing.T) {
	assert.True(t, ValidConfidence(ConfidenceUnanimous))
	assert.True(t, ValidConfidence(ConfidenceMajority))
	assert.True(t, ValidConfidence(ConfidenceNone))
	assert.False(t, ValidConfidence(""))
	assert.False(t, ValidConfidence("certain"))
}

func TestAssignmentHasFlag(t *testing.T) {
	a := Assignment{Node: 1, Label: "B.1", Flags: []string{FlagTied}}
	assert.True(t, a.HasFlag(FlagTied))
	assert.False(t, a.HasFlag(FlagForced))
	assert.False(t, Assignment{}.HasFlag(FlagTied))
}

func TestInterval(t *testing.T) {
	iv := Interval{Left: 10, Right: 25}
	assert.Equal(t, 15.0, iv.Span())
	assert.True(t, iv.Contains(10))
	assert.True(t, iv.Contains(24.9))
	assert.False(t, iv.Contains(25))
	assert.False(t, iv.Contains(9))
}
