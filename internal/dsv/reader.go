package dsv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/JonMunkholm/dsvmender/internal/mender"
)

// MaxLineSize is the longest line a Reader accepts.
const MaxLineSize = 1 << 20

var (
	ErrHeaderAfterRows = errors.New("header must be read before any row")
	ErrLineTooLong     = errors.New("line too long")
)

// Record is one row read from the input.
type Record struct {
	// Line is the 1-based line number in the input.
	Line int

	// Original holds the fields as split from the line.
	Original []string

	// Fields holds the row to use: the original when it was valid, the
	// repaired row otherwise.
	Fields []string

	// Mended is true when Fields differ from Original, either because the
	// row was optimized or because it came out of a candidate search.
	Mended bool

	// Score is the best candidate score for mended rows and NaN otherwise.
	Score float64

	// Candidates is the number of candidates scored for mended rows.
	Candidates int
}

// LineError reports a line that could not be repaired.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader reads rows and repairs the ones that need it. Valid rows are fitted
// into the mender's estimations as they are read, so later repairs benefit
// from earlier rows.
type Reader struct {
	mender    *mender.Mender
	scanner   *bufio.Scanner
	threshold int
	skipBlank bool
	line      int
	rowsRead  bool
	delimiter string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithOptimizeThreshold collapses runs of empty fields in rows longer than
// the target before mending them. Negative values disable it.
func WithOptimizeThreshold(threshold int) ReaderOption {
	return func(r *Reader) { r.threshold = threshold }
}

// WithBlankLines passes blank lines through to the mender instead of
// skipping them.
func WithBlankLines() ReaderOption {
	return func(r *Reader) { r.skipBlank = false }
}

// NewReader returns a Reader repairing rows from src with m.
func NewReader(src io.Reader, m *mender.Mender, opts ...ReaderOption) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	r := &Reader{
		mender:    m,
		scanner:   scanner,
		threshold: -1,
		skipBlank: true,
		delimiter: m.Delimiter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// ReadHeader reads the first line as a header. A header with the wrong
// number of fields is mended; a header is never fitted.
func (r *Reader) ReadHeader() ([]string, error) {
	if r.rowsRead {
		return nil, ErrHeaderAfterRows
	}
	line, err := r.next()
	if err != nil {
		return nil, err
	}
	r.rowsRead = true

	header := Split(line, r.delimiter)
	mended, err := r.mender.MendIfInvalid(header)
	if err != nil {
		return header, &LineError{Line: r.line, Err: err}
	}
	return mended, nil
}

// Read returns the next row. It returns io.EOF at the end of the input and a
// *LineError for a row that could not be repaired; reading may continue
// after a LineError. Any other error ends the input.
func (r *Reader) Read() (Record, error) {
	line, err := r.next()
	if err != nil {
		return Record{}, err
	}
	r.rowsRead = true

	fields := Split(line, r.delimiter)
	rec := Record{Line: r.line, Original: fields, Score: math.NaN()}

	input := fields
	optimized := false
	if r.threshold >= 0 && len(fields) > r.mender.Length() {
		if input, err = r.mender.Optimize(r.threshold, fields); err != nil {
			return rec, &LineError{Line: r.line, Err: err}
		}
		optimized = len(input) != len(fields)
	}

	repaired, err := r.mender.Mend(input)
	if err != nil {
		return rec, &LineError{Line: r.line, Err: err}
	}
	rec.Fields = repaired

	if result, ok := r.mender.LastResult(); ok {
		rec.Mended = true
		rec.Score = result.Best().Score()
		rec.Candidates = len(result.Candidates())
	} else if optimized {
		rec.Mended = true
	}
	return rec, nil
}

func (r *Reader) next() (string, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if r.skipBlank && line == "" {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", fmt.Errorf("line %d: %w (max %d bytes)", r.line+1, ErrLineTooLong, MaxLineSize)
		}
		return "", err
	}
	return "", io.EOF
}
