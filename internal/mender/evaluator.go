package mender

import (
	"math"
	"reflect"
)

// Evaluator scores a candidate row. NaN means the row is disqualified.
type Evaluator interface {
	Score(row []string) float64
}

// Predicate decides whether a single field value is acceptable.
type Predicate func(value string) bool

// Transform maps a field value to the key counted by an estimation.
// Keys must be comparable; build transforms with TransformOf to have the
// compiler check that. Incomparable keys such as slices and maps are not
// counted.
type Transform func(value string) any

// ConstraintEvaluator is a hard rule on one column.
type ConstraintEvaluator struct {
	column    int
	predicate Predicate
}

// NewConstraint returns a constraint applying predicate to the given column.
func NewConstraint(column int, predicate Predicate) (*ConstraintEvaluator, error) {
	if predicate == nil {
		return nil, invalidArgument("constraint predicate is nil")
	}
	if column < 0 {
		return nil, invalidArgument("invalid constraint column %d (0 or greater expected)", column)
	}
	return &ConstraintEvaluator{column: column, predicate: predicate}, nil
}

// Column returns the index of the column this constraint reads.
func (c *ConstraintEvaluator) Column() int {
	return c.column
}

// IsValid reports whether the predicate holds for the row. Rows too short to
// hold the column are never valid.
func (c *ConstraintEvaluator) IsValid(row []string) bool {
	if c.column >= len(row) {
		return false
	}
	return c.predicate(row[c.column])
}

// Score returns 1.0 when the constraint holds and NaN otherwise.
func (c *ConstraintEvaluator) Score(row []string) float64 {
	if c.IsValid(row) {
		return 1.0
	}
	return math.NaN()
}

// EstimationEvaluator learns how often each key appears in a column.
type EstimationEvaluator struct {
	column    int
	transform Transform
	bag       map[any]int64
	total     int64
}

// NewEstimation returns an estimation counting transform keys of the given column.
func NewEstimation(column int, transform Transform) (*EstimationEvaluator, error) {
	if transform == nil {
		return nil, invalidArgument("estimation transform is nil")
	}
	if column < 0 {
		return nil, invalidArgument("invalid estimation column %d (0 or greater expected)", column)
	}
	return &EstimationEvaluator{
		column:    column,
		transform: transform,
		bag:       make(map[any]int64),
	}, nil
}

// Column returns the index of the column this estimation reads.
func (e *EstimationEvaluator) Column() int {
	return e.column
}

// Fit records the key of the row's column value. Rows whose key is not
// comparable are skipped.
func (e *EstimationEvaluator) Fit(row []string) {
	if e.column >= len(row) {
		return
	}
	key := e.transform(row[e.column])
	if !comparableKey(key) {
		return
	}
	e.bag[key]++
	e.total++
}

// Score returns the observed frequency of the row's key. It is NaN until the
// first Fit and 0 for keys never seen.
func (e *EstimationEvaluator) Score(row []string) float64 {
	if e.total == 0 {
		return math.NaN()
	}
	if e.column >= len(row) {
		return 0
	}
	key := e.transform(row[e.column])
	if !comparableKey(key) {
		return 0
	}
	return float64(e.bag[key]) / float64(e.total)
}

// comparableKey reports whether key can be used as a map key without
// panicking.
func comparableKey(key any) bool {
	return key == nil || reflect.TypeOf(key).Comparable()
}

// Total returns the number of fitted rows.
func (e *EstimationEvaluator) Total() int64 {
	return e.total
}

// Reset forgets every fitted row.
func (e *EstimationEvaluator) Reset() {
	clear(e.bag)
	e.total = 0
}
