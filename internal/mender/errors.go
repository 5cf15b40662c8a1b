package mender

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrInvalidArgument is returned for malformed input. It is detected
	// before any search starts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDepthExceeded means the row is too far from the target length.
	ErrDepthExceeded = errors.New("depth exceeded")

	// ErrNoSolution means no candidate received a defined score.
	ErrNoSolution = errors.New("no solution")
)

// RepairError reports a row the Mender could not repair.
type RepairError struct {
	Row      []string
	Depth    int
	MaxDepth int
	Err      error
}

func (e *RepairError) Error() string {
	switch {
	case errors.Is(e.Err, ErrDepthExceeded):
		return fmt.Sprintf("max depth exceeded (%d > %d) for values: %s", e.Depth, e.MaxDepth, formatRow(e.Row))
	case errors.Is(e.Err, ErrNoSolution):
		return fmt.Sprintf("no solution for values: %s (consider using other constraints and estimations)", formatRow(e.Row))
	default:
		return fmt.Sprintf("repair failed for values: %s: %v", formatRow(e.Row), e.Err)
	}
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func formatRow(row []string) string {
	quoted := make([]string, len(row))
	for i, v := range row {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
