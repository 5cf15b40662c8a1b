package dsv

import (
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader counts the bytes read from the underlying reader so progress
// can be reported while a file streams through.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
	total  int64
}

// NewCountingReader wraps r. total is the expected size, 0 when unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, total: total}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far. It is safe to call from
// another goroutine.
func (r *CountingReader) BytesRead() int64 {
	return r.read.Load()
}

// Progress returns the read progress as a percentage, 0 when the total is
// unknown.
func (r *CountingReader) Progress() int {
	if r.total <= 0 {
		return 0
	}
	p := int(r.read.Load() * 100 / r.total)
	if p > 100 {
		p = 100
	}
	return p
}

// Sanitize strips a leading UTF-8 BOM, replaces invalid UTF-8 with U+FFFD and
// counts the raw bytes consumed.
func Sanitize(r io.Reader, total int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	return transform.NewReader(counter, unicode.UTF8BOM.NewDecoder()), counter
}
