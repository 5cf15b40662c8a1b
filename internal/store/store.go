// Package store persists repair jobs and the rows they changed.
//
// Every repair job is recorded with its counters, and every row that was
// mended or could not be repaired is kept with its original and repaired
// fields, so a repaired file can be audited after the fact. Two backends
// implement Ledger: Postgres for the server and SQLite for local CLI runs.
package store

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("not found")

// Job status values.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job is one repair run over one file.
type Job struct {
	ID         string
	Profile    string
	FileName   string
	Status     string
	RowsTotal  int
	RowsValid  int
	RowsMended int
	RowsFailed int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Repair is one row the job changed or failed to repair. Repaired is nil and
// Score is NaN for failed rows.
type Repair struct {
	Line       int
	Original   []string
	Repaired   []string
	Score      float64
	Candidates int
	Error      string
}

// Failed reports whether the row could not be repaired.
func (r Repair) Failed() bool {
	return r.Error != ""
}

// Ledger records repair jobs.
type Ledger interface {
	EnsureSchema(ctx context.Context) error
	RecordJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	RecordRepairs(ctx context.Context, jobID string, repairs []Repair) error
	ListRepairs(ctx context.Context, jobID string) ([]Repair, error)
	Close() error
}

// nullableScore maps NaN to NULL.
func nullableScore(score float64) *float64 {
	if math.IsNaN(score) {
		return nil
	}
	return &score
}

func scoreOrNaN(score *float64) float64 {
	if score == nil {
		return math.NaN()
	}
	return *score
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
