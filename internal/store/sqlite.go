package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS repair_jobs (
	id          TEXT PRIMARY KEY,
	profile     TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	status      TEXT NOT NULL,
	rows_total  INTEGER NOT NULL DEFAULT 0,
	rows_valid  INTEGER NOT NULL DEFAULT 0,
	rows_mended INTEGER NOT NULL DEFAULT 0,
	rows_failed INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS repaired_rows (
	job_id      TEXT NOT NULL REFERENCES repair_jobs(id) ON DELETE CASCADE,
	line        INTEGER NOT NULL,
	original    TEXT NOT NULL,
	repaired    TEXT,
	score       REAL,
	candidates  INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, line)
);
`

// SQLite is a Ledger stored in a local SQLite file. Rows are kept as JSON
// arrays and timestamps as Unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" keeps it in
// memory for the life of the ledger.
func OpenSQLite(path string) (*SQLite, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

func (s *SQLite) RecordJob(ctx context.Context, job Job) error {
	var finished *int64
	if !job.FinishedAt.IsZero() {
		ms := job.FinishedAt.UnixMilli()
		finished = &ms
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repair_jobs (id, profile, file_name, status, rows_total, rows_valid,
			rows_mended, rows_failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			rows_total = excluded.rows_total,
			rows_valid = excluded.rows_valid,
			rows_mended = excluded.rows_mended,
			rows_failed = excluded.rows_failed,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		job.ID, job.Profile, job.FileName, job.Status, job.RowsTotal, job.RowsValid,
		job.RowsMended, job.RowsFailed, job.Error, job.StartedAt.UnixMilli(), finished,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLite) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	var started int64
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile, file_name, status, rows_total, rows_valid, rows_mended,
			rows_failed, error, started_at, finished_at
		FROM repair_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Profile, &job.FileName, &job.Status, &job.RowsTotal, &job.RowsValid,
		&job.RowsMended, &job.RowsFailed, &job.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	job.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		job.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return job, nil
}

// RecordRepairs inserts the rows in one transaction.
func (s *SQLite) RecordRepairs(ctx context.Context, jobID string, repairs []Repair) error {
	if len(repairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO repaired_rows (job_id, line, original, repaired, score, candidates, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range repairs {
		original, err := json.Marshal(r.Original)
		if err != nil {
			return fmt.Errorf("encode line %d: %w", r.Line, err)
		}
		var repaired *string
		if r.Repaired != nil {
			data, err := json.Marshal(r.Repaired)
			if err != nil {
				return fmt.Errorf("encode line %d: %w", r.Line, err)
			}
			text := string(data)
			repaired = &text
		}

		if _, err := stmt.ExecContext(ctx, jobID, r.Line, string(original), repaired,
			nullableScore(r.Score), r.Candidates, r.Error); err != nil {
			return fmt.Errorf("insert line %d: %w", r.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit repairs: %w", err)
	}
	return nil
}

func (s *SQLite) ListRepairs(ctx context.Context, jobID string) ([]Repair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line, original, repaired, score, candidates, error
		FROM repaired_rows WHERE job_id = ? ORDER BY line`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list repairs for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var repairs []Repair
	for rows.Next() {
		var r Repair
		var original string
		var repaired sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&r.Line, &original, &repaired, &score, &r.Candidates, &r.Error); err != nil {
			return nil, fmt.Errorf("scan repair: %w", err)
		}
		if err := json.Unmarshal([]byte(original), &r.Original); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", r.Line, err)
		}
		if repaired.Valid {
			if err := json.Unmarshal([]byte(repaired.String), &r.Repaired); err != nil {
				return nil, fmt.Errorf("decode line %d: %w", r.Line, err)
			}
		}
		if score.Valid {
			r.Score = score.Float64
		} else {
			r.Score = scoreOrNaN(nil)
		}
		repairs = append(repairs, r)
	}
	return repairs, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
