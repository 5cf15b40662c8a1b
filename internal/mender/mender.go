package mender

import (
	"math"
	"slices"
	"strings"
)

// DefaultMaxDepth is the search depth used when none is configured.
const DefaultMaxDepth = 20

// Mender repairs rows toward a fixed column count.
type Mender struct {
	delimiter   string
	length      int
	maxDepth    int
	constraints []*ConstraintEvaluator
	estimations []*EstimationEvaluator
	lastResult  *Result
}

// New returns a Mender. The evaluator slices are copied; nil slices are empty
// sets. Every evaluator column must lie within the row length.
func New(delimiter string, length, maxDepth int, constraints []*ConstraintEvaluator, estimations []*EstimationEvaluator) (*Mender, error) {
	if delimiter == "" {
		return nil, invalidArgument("delimiter is empty")
	}
	if length < 2 {
		return nil, invalidArgument("invalid length %d (greater than 1 expected)", length)
	}
	if maxDepth < 1 {
		return nil, invalidArgument("invalid max depth %d (greater than 0 expected)", maxDepth)
	}
	for i, c := range constraints {
		if c == nil {
			return nil, invalidArgument("constraint %d is nil", i)
		}
		if c.column >= length {
			return nil, invalidArgument("constraint %d reads column %d (less than %d expected)", i, c.column, length)
		}
	}
	for i, e := range estimations {
		if e == nil {
			return nil, invalidArgument("estimation %d is nil", i)
		}
		if e.column >= length {
			return nil, invalidArgument("estimation %d reads column %d (less than %d expected)", i, e.column, length)
		}
	}

	return &Mender{
		delimiter:   delimiter,
		length:      length,
		maxDepth:    maxDepth,
		constraints: slices.Clone(constraints),
		estimations: slices.Clone(estimations),
	}, nil
}

func (m *Mender) Delimiter() string { return m.delimiter }
func (m *Mender) Length() int       { return m.length }
func (m *Mender) MaxDepth() int     { return m.maxDepth }

// Constraints returns a copy of the constraint set.
func (m *Mender) Constraints() []*ConstraintEvaluator {
	return slices.Clone(m.constraints)
}

// Estimations returns a copy of the estimation set.
func (m *Mender) Estimations() []*EstimationEvaluator {
	return slices.Clone(m.estimations)
}

// LastResult returns the result of the last Mend call that searched for
// candidates. It is absent after a Mend call that found the row already valid.
func (m *Mender) LastResult() (*Result, bool) {
	return m.lastResult, m.lastResult != nil
}

// IsValid reports whether the row has the target length and satisfies every
// constraint.
func (m *Mender) IsValid(row []string) bool {
	if len(row) != m.length {
		return false
	}
	for _, c := range m.constraints {
		if !c.IsValid(row) {
			return false
		}
	}
	return true
}

// Fit feeds the row into every estimation without checking its validity.
func (m *Mender) Fit(row []string) error {
	if row == nil {
		return invalidArgument("row is nil")
	}
	m.fit(row)
	return nil
}

// FitIfValid fits the row only when it is valid and reports whether it did.
func (m *Mender) FitIfValid(row []string) (bool, error) {
	if row == nil {
		return false, invalidArgument("row is nil")
	}
	if !m.IsValid(row) {
		return false, nil
	}
	m.fit(row)
	return true, nil
}

func (m *Mender) fit(row []string) {
	for _, e := range m.estimations {
		e.Fit(row)
	}
}

// Optimize collapses long runs of empty fields while the row is longer than
// the target. Of each run longer than 2*threshold+1, threshold empty fields
// are kept on both sides and the middle is merged into a single field made of
// delimiters. The input row is not modified.
func (m *Mender) Optimize(threshold int, row []string) ([]string, error) {
	if threshold < 0 {
		return nil, invalidArgument("invalid threshold %d (0 or greater expected)", threshold)
	}
	if row == nil {
		return nil, invalidArgument("row is nil")
	}

	optimized := slices.Clone(row)
	for m.length < len(optimized) {
		from, to := longestEmptyRun(optimized)
		if to-from <= 2*threshold+1 {
			break
		}
		keep := from + threshold
		removed := to - from - 2*threshold - 1
		optimized[keep] += strings.Repeat(m.delimiter, removed)
		optimized = slices.Delete(optimized, keep+1, keep+1+removed)
	}
	return optimized, nil
}

// longestEmptyRun returns the half-open bounds of the first longest run of
// empty fields.
func longestEmptyRun(row []string) (from, to int) {
	start := -1
	for i, v := range row {
		switch {
		case start == -1 && v == "":
			start = i
		case start != -1 && v != "":
			if to-from < i-start {
				from, to = start, i
			}
			start = -1
		}
	}
	if start != -1 && to-from < len(row)-start {
		from, to = start, len(row)
	}
	return from, to
}

// Mend returns a repaired copy of the row.
//
// A valid row is fitted into the estimations and returned unchanged. Any other
// row is expanded into candidates of the target length, which are scored by
// every evaluator; the best scored candidate is returned and the search is
// kept as the last result. Failures return a *RepairError and leave the
// estimations and the last result untouched.
func (m *Mender) Mend(row []string) ([]string, error) {
	if row == nil {
		return nil, invalidArgument("row is nil")
	}

	if m.IsValid(row) {
		m.fit(row)
		m.lastResult = nil
		return row, nil
	}

	depth := abs(m.length - len(row) - 2)
	if depth > m.maxDepth {
		return nil, &RepairError{Row: slices.Clone(row), Depth: depth, MaxDepth: m.maxDepth, Err: ErrDepthExceeded}
	}

	leaves := m.generate(row)

	result := &Result{
		value:      slices.Clone(row),
		candidates: make([]Candidate, 0, len(leaves)),
	}
	best := -1
	for _, leaf := range leaves {
		c := Candidate{value: leaf, score: m.score(leaf)}
		result.candidates = append(result.candidates, c)
		if c.Scored() && (best == -1 || result.candidates[best].score < c.score) {
			best = len(result.candidates) - 1
		}
	}
	if best == -1 {
		return nil, &RepairError{Row: slices.Clone(row), Depth: depth, MaxDepth: m.maxDepth, Err: ErrNoSolution}
	}

	result.best = result.candidates[best]
	m.lastResult = result
	return result.best.Value(), nil
}

// MendIfInvalid mends rows that do not have the target length and returns any
// other row unchanged without fitting it.
func (m *Mender) MendIfInvalid(row []string) ([]string, error) {
	if row == nil {
		return nil, invalidArgument("row is nil")
	}
	if len(row) == m.length {
		return row, nil
	}
	return m.Mend(row)
}

// OptimizedMend optimizes the row with the given threshold, then mends it.
func (m *Mender) OptimizedMend(threshold int, row []string) ([]string, error) {
	optimized, err := m.Optimize(threshold, row)
	if err != nil {
		return nil, err
	}
	return m.Mend(optimized)
}

// MendLine splits the line on the delimiter and mends the fields.
func (m *Mender) MendLine(line string) ([]string, error) {
	return m.Mend(strings.Split(line, m.delimiter))
}

// OptimizeLine splits the line on the delimiter and optimizes the fields.
func (m *Mender) OptimizeLine(threshold int, line string) ([]string, error) {
	return m.Optimize(threshold, strings.Split(line, m.delimiter))
}

// FitLine splits the line on the delimiter and fits the fields.
func (m *Mender) FitLine(line string) error {
	return m.Fit(strings.Split(line, m.delimiter))
}

// generate expands the row generation by generation until every leaf has the
// target length.
func (m *Mender) generate(row []string) [][]string {
	switch {
	case len(row) > m.length:
		current := dedupe(m.JoinChildren(row))
		for i := m.length; i < len(row)-1; i++ {
			current = expand(current, m.JoinChildren)
		}
		return current
	case len(row) < m.length:
		current := dedupe(m.ShiftChildren(row))
		for i := m.length; i > len(row)+1; i-- {
			current = expand(current, m.ShiftChildren)
		}
		return current
	default:
		return expand(m.JoinChildren(row), m.ShiftChildren)
	}
}

// score is the mean of every constraint score followed by every estimation
// score. A row no evaluator scored is NaN.
func (m *Mender) score(row []string) float64 {
	n := len(m.constraints) + len(m.estimations)
	if n == 0 {
		return math.NaN()
	}
	var sum float64
	for _, c := range m.constraints {
		sum += c.Score(row)
	}
	for _, e := range m.estimations {
		sum += e.Score(row)
	}
	return sum / float64(n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
