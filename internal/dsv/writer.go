package dsv

import (
	"bufio"
	"io"
)

// Writer writes rows joined with a delimiter, one per line.
type Writer struct {
	w         *bufio.Writer
	delimiter string
	rows      int64
}

func NewWriter(w io.Writer, delimiter string) *Writer {
	return &Writer{w: bufio.NewWriter(w), delimiter: delimiter}
}

// Write writes one row.
func (w *Writer) Write(fields []string) error {
	if _, err := w.w.WriteString(Join(fields, w.delimiter)); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written.
func (w *Writer) Rows() int64 {
	return w.rows
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
