package dsv

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// Split splits a line on every occurrence of the whole delimiter, keeping
// empty tokens.
func Split(line, delimiter string) []string {
	return strings.Split(line, delimiter)
}

// Join joins fields with the delimiter.
func Join(fields []string, delimiter string) string {
	return strings.Join(fields, delimiter)
}

// PeekHeader returns the fields of the first line without consuming it.
// Header lines longer than the reader's buffer are rejected.
func PeekHeader(br *bufio.Reader, delimiter string) ([]string, error) {
	data, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if len(data) == 0 {
		return nil, io.EOF
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	} else if len(data) == br.Size() {
		return nil, ErrLineTooLong
	}
	return Split(strings.TrimSuffix(string(line), "\r"), delimiter), nil
}
