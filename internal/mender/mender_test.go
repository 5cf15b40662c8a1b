package mender

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newFooBar returns the mender used by most tests: three columns, the first
// must be "foo", the third is estimated.
func newFooBar(t *testing.T) *Mender {
	t.Helper()
	m, err := NewBuilder().
		WithDelimiter(",").
		WithLength(3).
		WithConstraint(Equals("foo"), 0).
		WithEstimation(Identity, 2).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

var candidateComparer = cmp.Comparer(func(a, b Candidate) bool { return a.Equal(b) })

func TestNew_InvalidArguments(t *testing.T) {
	constraint, _ := NewConstraint(0, NotEmpty)
	estimation, _ := NewEstimation(0, Identity)
	outOfRange, _ := NewConstraint(5, NotEmpty)

	tests := []struct {
		name        string
		delimiter   string
		length      int
		maxDepth    int
		constraints []*ConstraintEvaluator
		estimations []*EstimationEvaluator
	}{
		{"empty delimiter", "", 3, 1, nil, nil},
		{"length one", ",", 1, 1, nil, nil},
		{"zero depth", ",", 3, 0, nil, nil},
		{"nil constraint", ",", 3, 1, []*ConstraintEvaluator{constraint, nil}, nil},
		{"nil estimation", ",", 3, 1, nil, []*EstimationEvaluator{nil, estimation}},
		{"column out of range", ",", 3, 1, []*ConstraintEvaluator{outOfRange}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.delimiter, tt.length, tt.maxDepth, tt.constraints, tt.estimations)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNew_CopiesEvaluators(t *testing.T) {
	constraint, _ := NewConstraint(0, NotEmpty)
	constraints := []*ConstraintEvaluator{constraint}

	m, err := New(",", 2, DefaultMaxDepth, constraints, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	constraints[0] = nil

	if got := m.Constraints(); len(got) != 1 || got[0] != constraint {
		t.Errorf("Constraints() = %v, want the original constraint", got)
	}
	if got := m.Estimations(); len(got) != 0 {
		t.Errorf("Estimations() = %v, want empty", got)
	}
}

func TestOptimize(t *testing.T) {
	m := newFooBar(t)

	tests := []struct {
		name      string
		threshold int
		row       []string
		want      []string
	}{
		{"shorter than target", 0, []string{"foo", ""}, []string{"foo", ""}},
		{"trailing run", 0, []string{"foo", "bar", "", ""}, []string{"foo", "bar", ","}},
		{"leading run", 0, []string{"", "", "bar", "foo"}, []string{",", "bar", "foo"}},
		{"stops at target", 0, []string{"foo", "", "", "bar", ""}, []string{"foo", ",", "bar", ""}},
		{"long run", 0, []string{"foo", "", "", "", "", "bar"}, []string{"foo", ",,,", "bar"}},
		{"threshold one", 1, []string{"foo", "", "", "", "", "bar"}, []string{"foo", "", ",", "", "bar"}},
		{"threshold two", 2, []string{"foo", "", "", "", "", "bar"}, []string{"foo", "", "", "", "", "bar"}},
		{"single empty", 0, []string{"", "foo"}, []string{"", "foo"}},
		{"already sized", 0, []string{"foo", "", "bar"}, []string{"foo", "", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Optimize(tt.threshold, tt.row)
			if err != nil {
				t.Fatalf("Optimize() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Optimize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	m := newFooBar(t)
	row := []string{"a", "", "", "", "", "", "", "b", "", "", "c"}

	for threshold := 0; threshold < 3; threshold++ {
		once, err := m.Optimize(threshold, row)
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		twice, err := m.Optimize(threshold, once)
		if err != nil {
			t.Fatalf("Optimize() error = %v", err)
		}
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("threshold %d: second Optimize() changed the row (-once +twice):\n%s", threshold, diff)
		}
	}
}

func TestOptimize_DoesNotModifyInput(t *testing.T) {
	m := newFooBar(t)
	row := []string{"foo", "", "", "", "", "bar"}
	if _, err := m.Optimize(0, row); err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if diff := cmp.Diff([]string{"foo", "", "", "", "", "bar"}, row); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}

func TestOptimize_InvalidArguments(t *testing.T) {
	m := newFooBar(t)
	if _, err := m.Optimize(-1, []string{"foo"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Optimize(-1) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := m.Optimize(0, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Optimize(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestMend_Sequence(t *testing.T) {
	m := newFooBar(t)

	steps := []struct {
		row  []string
		want []string
	}{
		{[]string{"foo", "", "bar"}, []string{"foo", "", "bar"}},
		{[]string{"foo"}, []string{"foo", "", ""}},
		{[]string{"foo", "", "", "", "bar"}, []string{"foo", ",,", "bar"}},
	}

	for _, step := range steps {
		got, err := m.Mend(step.row)
		if err != nil {
			t.Fatalf("Mend(%q) error = %v", step.row, err)
		}
		if diff := cmp.Diff(step.want, got); diff != "" {
			t.Errorf("Mend(%q) mismatch (-want +got):\n%s", step.row, diff)
		}
	}

	_, err := m.Mend([]string{"bar", "", "foo"})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("Mend() error = %v, want ErrNoSolution", err)
	}
	var repairErr *RepairError
	if !errors.As(err, &repairErr) {
		t.Fatalf("Mend() error type = %T, want *RepairError", err)
	}
}

func TestMend_NeedsFittedEstimations(t *testing.T) {
	m := newFooBar(t)

	if _, err := m.Mend([]string{"foo", "bar"}); !errors.Is(err, ErrNoSolution) {
		t.Fatalf("Mend() before Fit error = %v, want ErrNoSolution", err)
	}

	if err := m.Fit([]string{"foo", "x", "bar"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := m.Mend([]string{"foo", "bar"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if diff := cmp.Diff([]string{"foo", "", "bar"}, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}
}

func TestMend_NoEvaluators(t *testing.T) {
	m, err := New(",", 3, DefaultMaxDepth, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := m.Mend([]string{"foo", "bar"}); !errors.Is(err, ErrNoSolution) {
		t.Errorf("Mend() error = %v, want ErrNoSolution", err)
	}
}

func TestMend_LengthEstimations(t *testing.T) {
	m, err := NewBuilder().WithLength(3).WithEstimation(Length).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := m.Fit([]string{"foo", "", "bar"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	got, err := m.Mend([]string{"f", "o", "", "b", "r"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if diff := cmp.Diff([]string{"f,o", "", "b,r"}, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}
}

func TestMend_ValidRowIsFittedAndReturnedUnchanged(t *testing.T) {
	m := newFooBar(t)
	row := []string{"foo", "x", "bar"}

	got, err := m.Mend(row)
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if diff := cmp.Diff(row, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}
	if total := m.Estimations()[0].Total(); total != 1 {
		t.Errorf("estimation total = %d, want 1", total)
	}
	if _, ok := m.LastResult(); ok {
		t.Error("LastResult() present after a valid row")
	}
}

func TestMend_LastResult(t *testing.T) {
	m := newFooBar(t)

	if _, err := m.Mend([]string{"foo", "", "bar"}); err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if _, ok := m.LastResult(); ok {
		t.Fatal("LastResult() present after a valid row")
	}

	got, err := m.Mend([]string{"foo", "bar"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if diff := cmp.Diff([]string{"foo", "", "bar"}, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}

	result, ok := m.LastResult()
	if !ok {
		t.Fatal("LastResult() absent after a repair")
	}
	if diff := cmp.Diff([]string{"foo", "bar"}, result.Value()); diff != "" {
		t.Errorf("Result.Value() mismatch (-want +got):\n%s", diff)
	}

	wantCandidates := []Candidate{
		NewCandidate([]string{"", "foo", "bar"}, math.NaN()),
		NewCandidate([]string{"foo", "", "bar"}, 1.0),
		NewCandidate([]string{"foo", "bar", ""}, 0.5),
	}
	if diff := cmp.Diff(wantCandidates, result.Candidates(), candidateComparer); diff != "" {
		t.Errorf("Result.Candidates() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(NewCandidate([]string{"foo", "", "bar"}, 1.0), result.Best(), candidateComparer); diff != "" {
		t.Errorf("Result.Best() mismatch (-want +got):\n%s", diff)
	}

	// A failed repair keeps the previous result.
	if _, err := m.Mend([]string{"bar", "", "foo"}); err == nil {
		t.Fatal("Mend() expected error")
	}
	if again, ok := m.LastResult(); !ok || again != result {
		t.Error("LastResult() changed by a failed repair")
	}
}

func TestMend_FailureDoesNotFit(t *testing.T) {
	m := newFooBar(t)
	if _, err := m.Mend([]string{"bar", "", "foo"}); err == nil {
		t.Fatal("Mend() expected error")
	}
	if total := m.Estimations()[0].Total(); total != 0 {
		t.Errorf("estimation total = %d, want 0", total)
	}
}

func TestMend_DepthExceeded(t *testing.T) {
	m, err := NewBuilder().WithLength(3).WithMaxDepth(2).WithEstimation(Identity).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = m.Mend([]string{"a", "b", "c", "d", "e"})
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("Mend() error = %v, want ErrDepthExceeded", err)
	}
	var repairErr *RepairError
	if !errors.As(err, &repairErr) {
		t.Fatalf("Mend() error type = %T, want *RepairError", err)
	}
	if repairErr.Depth != 4 || repairErr.MaxDepth != 2 {
		t.Errorf("RepairError depth = %d/%d, want 4/2", repairErr.Depth, repairErr.MaxDepth)
	}
}

func TestMend_NilRow(t *testing.T) {
	m := newFooBar(t)
	if _, err := m.Mend(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Mend(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestMend_FirstCandidateWinsTies(t *testing.T) {
	m, err := NewBuilder().WithLength(3).WithConstraint(NotEmpty, 0).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, err := m.Mend([]string{"a", "b"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	// ("", a, b) is NaN; (a, "", b) and (a, b, "") both score 1.
	if diff := cmp.Diff([]string{"a", "", "b"}, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}
}

func TestMend_EqualLengthInvalidRow(t *testing.T) {
	m, err := NewBuilder().
		WithLength(3).
		WithConstraint(Equals("a,b"), 0).
		WithConstraint(IsEmpty, 1).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, err := m.Mend([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a,b", "", "c"}, got); diff != "" {
		t.Errorf("Mend() mismatch (-want +got):\n%s", diff)
	}
}

func TestMend_ReturnsCopy(t *testing.T) {
	m := newFooBar(t)
	m.Fit([]string{"foo", "", "bar"})

	got, err := m.Mend([]string{"foo", "bar"})
	if err != nil {
		t.Fatalf("Mend() error = %v", err)
	}
	got[0] = "changed"

	result, _ := m.LastResult()
	if v := result.Best().Value(); v[0] != "foo" {
		t.Errorf("Best().Value()[0] = %q, want %q", v[0], "foo")
	}
}

func TestMendIfInvalid(t *testing.T) {
	m := newFooBar(t)

	row := []string{"bar", "", "foo"}
	got, err := m.MendIfInvalid(row)
	if err != nil {
		t.Fatalf("MendIfInvalid() error = %v", err)
	}
	if diff := cmp.Diff(row, got); diff != "" {
		t.Errorf("MendIfInvalid() mismatch (-want +got):\n%s", diff)
	}
	if total := m.Estimations()[0].Total(); total != 0 {
		t.Errorf("estimation total = %d, want 0", total)
	}
}

func TestOptimizedMend(t *testing.T) {
	m := newFooBar(t)
	m.Fit([]string{"foo", "", "bar"})

	got, err := m.OptimizedMend(0, []string{"foo", "", "", "", "", "bar"})
	if err != nil {
		t.Fatalf("OptimizedMend() error = %v", err)
	}
	if diff := cmp.Diff([]string{"foo", ",,,", "bar"}, got); diff != "" {
		t.Errorf("OptimizedMend() mismatch (-want +got):\n%s", diff)
	}
}

func TestMendLine(t *testing.T) {
	m := newFooBar(t)
	if err := m.FitLine("foo,,bar"); err != nil {
		t.Fatalf("FitLine() error = %v", err)
	}

	got, err := m.MendLine("foo,x,y,bar")
	if err != nil {
		t.Fatalf("MendLine() error = %v", err)
	}
	if diff := cmp.Diff([]string{"foo", "x,y", "bar"}, got); diff != "" {
		t.Errorf("MendLine() mismatch (-want +got):\n%s", diff)
	}
}

func TestFitIfValid(t *testing.T) {
	m := newFooBar(t)

	tests := []struct {
		row  []string
		want bool
	}{
		{[]string{"foo", "", "bar"}, true},
		{[]string{"bar", "", "foo"}, false},
		{[]string{"foo", "bar"}, false},
	}
	for _, tt := range tests {
		got, err := m.FitIfValid(tt.row)
		if err != nil {
			t.Fatalf("FitIfValid(%q) error = %v", tt.row, err)
		}
		if got != tt.want {
			t.Errorf("FitIfValid(%q) = %v, want %v", tt.row, got, tt.want)
		}
	}
	if total := m.Estimations()[0].Total(); total != 1 {
		t.Errorf("estimation total = %d, want 1", total)
	}
}

func BenchmarkMend_Join(b *testing.B) {
	m, err := Basic(",", 4)
	if err != nil {
		b.Fatalf("Basic() error = %v", err)
	}
	for i := 0; i < 100; i++ {
		m.Fit([]string{"2024-01-01", "alice", "note", "42"})
	}
	row := []string{"2024-01-01", "alice", "a", "long", "note", "42"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Mend(row); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMend_Shift(b *testing.B) {
	m, err := Basic(",", 8)
	if err != nil {
		b.Fatalf("Basic() error = %v", err)
	}
	for i := 0; i < 100; i++ {
		m.Fit([]string{"a", "b", "c", "", "", "f", "g", "h"})
	}
	row := []string{"a", "b", "c", "f"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Mend(row); err != nil {
			b.Fatal(err)
		}
	}
}
