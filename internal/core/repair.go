package core

// repair.go streams one file through a profile's mender.
//
// The flow is:
//
//  1. Peek the header to learn the column count when the profile has none
//  2. Build a fresh Mender for the file
//  3. Read, mend and write rows one at a time
//
// Memory stays bounded by the longest line plus the recorded repairs, which
// are capped at MaxRecordedRepairs.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/profile"
	"github.com/JonMunkholm/dsvmender/internal/store"
)

// ContextCheckInterval is how often, in rows, to check for cancellation.
var ContextCheckInterval = 100

// ProgressInterval is how often, in rows, OnProgress is called.
var ProgressInterval = 500

// MaxRecordedRepairs caps the repairs kept per file.
const MaxRecordedRepairs = 10000

// headerPeekSize bounds the header line when the column count comes from it.
const headerPeekSize = 64 << 10

// RepairOptions tunes RepairStream. The zero value follows the profile.
type RepairOptions struct {
	// Header overrides the profile's header flag when set.
	Header *bool

	// OptimizeThreshold overrides the profile's threshold when set.
	OptimizeThreshold *int

	// MaxDepth applies when the profile sets none.
	MaxDepth int

	// DropFailed leaves rows that could not be repaired out of the output.
	// They are written unchanged otherwise.
	DropFailed bool

	// OnProgress receives the running counts.
	OnProgress func(RowCounts)
}

// RepairStream reads delimited rows from src, repairs them with p and writes
// the result to dst. Rows that cannot be repaired are reported in the result
// and do not stop the stream; read errors, cancellation and output errors do.
// The returned result is non-nil even when an error is returned.
func RepairStream(ctx context.Context, p profile.Profile, src io.Reader, dst io.Writer, opts RepairOptions) (*RepairResult, error) {
	start := time.Now()
	result := &RepairResult{Profile: p.Name}
	defer func() { result.Duration = time.Since(start) }()

	header := p.Header
	if opts.Header != nil {
		header = *opts.Header
	}
	threshold := p.Threshold()
	if opts.OptimizeThreshold != nil {
		threshold = *opts.OptimizeThreshold
	}
	if p.MaxDepth == 0 && opts.MaxDepth > 0 {
		p.MaxDepth = opts.MaxDepth
	}

	br := bufio.NewReaderSize(src, headerPeekSize)

	columns := p.Columns
	if columns == 0 {
		if !header {
			return result, fmt.Errorf("profile %s: %w: the profile has no column count and the file no header", p.Name, ErrColumnsRequired)
		}
		fields, err := dsv.PeekHeader(br, p.Delimiter)
		if errors.Is(err, io.EOF) {
			return result, ErrEmptyFile
		}
		if err != nil {
			return result, fmt.Errorf("read header: %w", err)
		}
		columns = len(fields)
	}
	result.Columns = columns

	m, err := p.Build(columns)
	if err != nil {
		return result, err
	}

	reader := dsv.NewReader(br, m, dsv.WithOptimizeThreshold(threshold))
	writer := dsv.NewWriter(dst, p.Delimiter)

	if header {
		h, err := reader.ReadHeader()
		var lineErr *dsv.LineError
		switch {
		case errors.Is(err, io.EOF):
			return result, ErrEmptyFile
		case errors.As(err, &lineErr):
			// The header is kept as read; rows are still repaired.
			result.addRepair(store.Repair{Line: lineErr.Line, Original: h, Score: math.NaN(), Error: lineErr.Err.Error()})
		case err != nil:
			return result, err
		}
		result.Header = h
		if err := writer.Write(h); err != nil {
			return result, fmt.Errorf("write header: %w", err)
		}
	}

	for {
		if result.Rows.Total%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		readStart := time.Now()
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var lineErr *dsv.LineError
		if errors.As(err, &lineErr) {
			result.Rows.Total++
			result.Rows.Failed++
			rowsTotal.WithLabelValues(p.Name, outcomeFailed).Inc()
			result.addRepair(store.Repair{
				Line:     lineErr.Line,
				Original: rec.Original,
				Score:    math.NaN(),
				Error:    lineErr.Err.Error(),
			})
			if !opts.DropFailed {
				if err := writer.Write(rec.Original); err != nil {
					return result, fmt.Errorf("write line %d: %w", lineErr.Line, err)
				}
			}
			result.progress(opts.OnProgress)
			continue
		}
		if err != nil {
			return result, err
		}

		result.Rows.Total++
		if rec.Mended {
			result.Rows.Mended++
			rowsTotal.WithLabelValues(p.Name, outcomeMended).Inc()
			mendCandidates.Observe(float64(rec.Candidates))
			mendDuration.Observe(time.Since(readStart).Seconds())
			result.addRepair(store.Repair{
				Line:       rec.Line,
				Original:   rec.Original,
				Repaired:   rec.Fields,
				Score:      rec.Score,
				Candidates: rec.Candidates,
			})
		} else {
			result.Rows.Valid++
			rowsTotal.WithLabelValues(p.Name, outcomeValid).Inc()
		}

		if err := writer.Write(rec.Fields); err != nil {
			return result, fmt.Errorf("write line %d: %w", rec.Line, err)
		}
		result.progress(opts.OnProgress)
	}

	if err := writer.Flush(); err != nil {
		return result, fmt.Errorf("flush output: %w", err)
	}
	if !header && result.Rows.Total == 0 {
		return result, ErrEmptyFile
	}
	if opts.OnProgress != nil {
		opts.OnProgress(result.Rows)
	}
	return result, nil
}

func (r *RepairResult) addRepair(rep store.Repair) {
	if len(r.Repairs) >= MaxRecordedRepairs {
		r.Truncated = true
		return
	}
	r.Repairs = append(r.Repairs, rep)
}

func (r *RepairResult) progress(fn func(RowCounts)) {
	if fn != nil && r.Rows.Total%ProgressInterval == 0 {
		fn(r.Rows)
	}
}
