package mender

import (
	"fmt"
	"math"
	"slices"
)

// Candidate is a repaired row together with its score.
type Candidate struct {
	value []string
	score float64
}

// NewCandidate returns a candidate holding a copy of value.
func NewCandidate(value []string, score float64) Candidate {
	return Candidate{value: slices.Clone(value), score: score}
}

// Value returns a copy of the candidate row.
func (c Candidate) Value() []string {
	return slices.Clone(c.value)
}

// Score returns the candidate score, NaN when unscored.
func (c Candidate) Score() float64 {
	return c.score
}

// Scored reports whether the candidate received a defined score.
func (c Candidate) Scored() bool {
	return !math.IsNaN(c.score)
}

// Equal reports whether both candidates hold the same row and score.
// Two NaN scores are equal.
func (c Candidate) Equal(other Candidate) bool {
	if !slices.Equal(c.value, other.value) {
		return false
	}
	if math.IsNaN(c.score) || math.IsNaN(other.score) {
		return math.IsNaN(c.score) && math.IsNaN(other.score)
	}
	return c.score == other.score
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s=%g", formatRow(c.value), c.score)
}

// Result describes the last search performed by Mend.
type Result struct {
	value      []string
	candidates []Candidate
	best       Candidate
}

// Value returns a copy of the row that was repaired.
func (r *Result) Value() []string {
	return slices.Clone(r.value)
}

// Candidates returns every candidate considered, in generation order.
func (r *Result) Candidates() []Candidate {
	return slices.Clone(r.candidates)
}

// Best returns the selected candidate.
func (r *Result) Best() Candidate {
	return r.best
}
