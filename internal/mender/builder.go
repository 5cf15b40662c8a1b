package mender

import (
	"errors"
	"fmt"
)

// Builder assembles a Mender. Configuration errors are collected and reported
// together by Build.
type Builder struct {
	delimiter   string
	length      int
	maxDepth    int
	constraints []*ConstraintEvaluator
	estimations []*EstimationEvaluator
	pending     []rule
	errs        []error
}

// rule is an evaluator waiting for the row length to resolve "every column".
type rule struct {
	constraint Predicate
	estimation Transform
	columns    []int
}

// NewBuilder returns a Builder with a comma delimiter and DefaultMaxDepth.
func NewBuilder() *Builder {
	return &Builder{delimiter: ",", maxDepth: DefaultMaxDepth}
}

func (b *Builder) WithDelimiter(delimiter string) *Builder {
	b.delimiter = delimiter
	return b
}

func (b *Builder) WithLength(length int) *Builder {
	b.length = length
	return b
}

func (b *Builder) WithMaxDepth(maxDepth int) *Builder {
	b.maxDepth = maxDepth
	return b
}

// WithConstraint adds the predicate as a constraint on each listed column, or
// on every column when none is listed.
func (b *Builder) WithConstraint(p Predicate, columns ...int) *Builder {
	if p == nil {
		b.errs = append(b.errs, invalidArgument("constraint predicate is nil"))
		return b
	}
	b.pending = append(b.pending, rule{constraint: p, columns: columns})
	return b
}

// WithEstimation adds the transform as an estimation on each listed column, or
// on every column when none is listed.
func (b *Builder) WithEstimation(t Transform, columns ...int) *Builder {
	if t == nil {
		b.errs = append(b.errs, invalidArgument("estimation transform is nil"))
		return b
	}
	b.pending = append(b.pending, rule{estimation: t, columns: columns})
	return b
}

// WithConstraintEvaluator adds a prebuilt constraint.
func (b *Builder) WithConstraintEvaluator(c *ConstraintEvaluator) *Builder {
	b.constraints = append(b.constraints, c)
	return b
}

// WithEstimationEvaluator adds a prebuilt estimation. The estimation keeps
// its fitted state.
func (b *Builder) WithEstimationEvaluator(e *EstimationEvaluator) *Builder {
	b.estimations = append(b.estimations, e)
	return b
}

// Build validates the configuration and returns the Mender.
func (b *Builder) Build() (*Mender, error) {
	errs := append([]error(nil), b.errs...)
	constraints := append([]*ConstraintEvaluator(nil), b.constraints...)
	estimations := append([]*EstimationEvaluator(nil), b.estimations...)

	for _, r := range b.pending {
		columns := r.columns
		if len(columns) == 0 {
			columns = allColumns(b.length)
		}
		for _, col := range columns {
			if col < 0 || (b.length > 0 && col >= b.length) {
				errs = append(errs, invalidArgument("invalid column %d (0 to %d expected)", col, b.length-1))
				continue
			}
			if r.constraint != nil {
				c, err := NewConstraint(col, r.constraint)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				constraints = append(constraints, c)
			} else {
				e, err := NewEstimation(col, r.estimation)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				estimations = append(estimations, e)
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("build mender: %w", errors.Join(errs...))
	}
	return New(b.delimiter, b.length, b.maxDepth, constraints, estimations)
}

// Basic returns a Mender estimating emptiness and length on every column.
func Basic(delimiter string, length int) (*Mender, error) {
	return NewBuilder().
		WithDelimiter(delimiter).
		WithLength(length).
		WithEstimation(Emptiness).
		WithEstimation(Length).
		Build()
}

func allColumns(length int) []int {
	if length < 1 {
		return nil
	}
	columns := make([]int, length)
	for i := range columns {
		columns[i] = i
	}
	return columns
}
