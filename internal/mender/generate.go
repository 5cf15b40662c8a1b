package mender

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// JoinChildren returns the rows obtained by merging each pair of adjacent
// fields with the delimiter. A row of n fields has n-1 children.
func (m *Mender) JoinChildren(parent []string) [][]string {
	if len(parent) < 2 {
		return nil
	}
	children := make([][]string, 0, len(parent)-1)
	for i := 0; i < len(parent)-1; i++ {
		child := make([]string, 0, len(parent)-1)
		child = append(child, parent[:i]...)
		child = append(child, parent[i]+m.delimiter+parent[i+1])
		child = append(child, parent[i+2:]...)
		children = append(children, child)
	}
	return children
}

// ShiftChildren returns the rows obtained by inserting an empty field at each
// position. A row of n fields has n+1 children.
func (m *Mender) ShiftChildren(parent []string) [][]string {
	children := make([][]string, 0, len(parent)+1)
	for i := 0; i <= len(parent); i++ {
		child := make([]string, 0, len(parent)+1)
		child = append(child, parent[:i]...)
		child = append(child, "")
		child = append(child, parent[i:]...)
		children = append(children, child)
	}
	return children
}

// frontier collects one generation of rows, dropping duplicates while keeping
// first-seen order.
type frontier struct {
	rows    [][]string
	buckets map[uint64][]int
	digest  *xxhash.Digest
}

func newFrontier(capacity int) *frontier {
	return &frontier{
		rows:    make([][]string, 0, capacity),
		buckets: make(map[uint64][]int, capacity),
		digest:  xxhash.New(),
	}
}

func (f *frontier) add(row []string) {
	key := f.hash(row)
	for _, i := range f.buckets[key] {
		if slices.Equal(f.rows[i], row) {
			return
		}
	}
	f.buckets[key] = append(f.buckets[key], len(f.rows))
	f.rows = append(f.rows, row)
}

func (f *frontier) addAll(rows [][]string) {
	for _, row := range rows {
		f.add(row)
	}
}

// hash length-prefixes every field so ("a,", "b") and ("a", ",b") differ.
func (f *frontier) hash(row []string) uint64 {
	var size [8]byte
	f.digest.Reset()
	for _, v := range row {
		binary.LittleEndian.PutUint64(size[:], uint64(len(v)))
		_, _ = f.digest.Write(size[:])
		_, _ = f.digest.WriteString(v)
	}
	return f.digest.Sum64()
}

// expand applies step to every row of the current generation.
func expand(current [][]string, step func([]string) [][]string) [][]string {
	next := newFrontier(len(current) * 2)
	for _, row := range current {
		next.addAll(step(row))
	}
	return next.rows
}

// dedupe removes duplicate rows from a single generation.
func dedupe(rows [][]string) [][]string {
	f := newFrontier(len(rows))
	f.addAll(rows)
	return f.rows
}
