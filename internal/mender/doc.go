// Package mender repairs delimiter-separated rows whose field count does not
// match the expected column count.
//
// A row can be broken in two ways: a delimiter sits unescaped inside a value,
// so the row has too many fields, or trailing values were dropped, so it has
// too few. A Mender explores the candidate rows obtained by joining adjacent
// fields back together or by inserting empty fields, then keeps the candidate
// that best satisfies its evaluators.
//
// # Evaluators
//
// Two kinds of evaluators score a candidate:
//
//   - ConstraintEvaluator: a hard rule on one column. It scores 1.0 when the
//     rule holds and NaN otherwise, which disqualifies the candidate.
//   - EstimationEvaluator: a frequency model on one column. Valid rows are
//     fitted into it, and it scores a value by how often its key was seen.
//
// A candidate's score is the arithmetic mean of all constraint scores followed
// by all estimation scores. A single NaN makes the mean NaN. The highest
// defined score wins and the first candidate wins ties.
//
// # Usage
//
//	m, err := mender.NewBuilder().
//	    WithDelimiter(",").
//	    WithLength(3).
//	    WithConstraint(mender.Equals("foo"), 0).
//	    WithEstimation(mender.Identity, 2).
//	    Build()
//	if err != nil {
//	    return err
//	}
//
//	m.Fit([]string{"foo", "x", "bar"})
//
//	row, err := m.Mend([]string{"foo", "bar"})
//	// row == []string{"foo", "", "bar"}
//
// Valid rows passed to Mend are fitted into the estimations, so a Mender
// learns from the well formed rows of a file while repairing the broken ones.
//
// # Concurrency
//
// A Mender is not safe for concurrent use. Mend and Fit mutate estimation
// state, so callers sharing one instance must serialise access.
package mender
