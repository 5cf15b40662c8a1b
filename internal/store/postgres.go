package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// PoolConfig sizes the Postgres connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

const postgresSchema = `
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
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS repaired_rows (
	job_id      TEXT NOT NULL REFERENCES repair_jobs(id) ON DELETE CASCADE,
	line        INTEGER NOT NULL,
	original    TEXT[] NOT NULL,
	repaired    TEXT[],
	score       DOUBLE PRECISION,
	candidates  INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, line)
);
`

// Postgres is a Ledger backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	db   DBTX
}

// OpenPostgres connects to url and verifies the connection.
func OpenPostgres(ctx context.Context, url string, cfg PoolConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool, db: pool}, nil
}

// NewPostgres wraps an existing connection or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

func (p *Postgres) RecordJob(ctx context.Context, job Job) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO repair_jobs (id, profile, file_name, status, rows_total, rows_valid,
			rows_mended, rows_failed, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			rows_total = EXCLUDED.rows_total,
			rows_valid = EXCLUDED.rows_valid,
			rows_mended = EXCLUDED.rows_mended,
			rows_failed = EXCLUDED.rows_failed,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		job.ID, job.Profile, job.FileName, job.Status, job.RowsTotal, job.RowsValid,
		job.RowsMended, job.RowsFailed, job.Error, job.StartedAt, nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	var finished *time.Time
	err := p.db.QueryRow(ctx, `
		SELECT id, profile, file_name, status, rows_total, rows_valid, rows_mended,
			rows_failed, error, started_at, finished_at
		FROM repair_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Profile, &job.FileName, &job.Status, &job.RowsTotal, &job.RowsValid,
		&job.RowsMended, &job.RowsFailed, &job.Error, &job.StartedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if finished != nil {
		job.FinishedAt = *finished
	}
	return job, nil
}

// RecordRepairs bulk-loads the rows with COPY.
func (p *Postgres) RecordRepairs(ctx context.Context, jobID string, repairs []Repair) error {
	if len(repairs) == 0 {
		return nil
	}
	rows := make([][]any, len(repairs))
	for i, r := range repairs {
		rows[i] = []any{jobID, r.Line, r.Original, r.Repaired, nullableScore(r.Score), r.Candidates, r.Error}
	}

	_, err := p.db.CopyFrom(ctx,
		pgx.Identifier{"repaired_rows"},
		[]string{"job_id", "line", "original", "repaired", "score", "candidates", "error"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("record repairs for job %s: %w", jobID, err)
	}
	return nil
}

func (p *Postgres) ListRepairs(ctx context.Context, jobID string) ([]Repair, error) {
	rows, err := p.db.Query(ctx, `
		SELECT line, original, repaired, score, candidates, error
		FROM repaired_rows WHERE job_id = $1 ORDER BY line`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list repairs for job %s: %w", jobID, err)
	}

	repairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Repair, error) {
		var r Repair
		var score *float64
		if err := row.Scan(&r.Line, &r.Original, &r.Repaired, &score, &r.Candidates, &r.Error); err != nil {
			return Repair{}, err
		}
		r.Score = scoreOrNaN(score)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan repairs for job %s: %w", jobID, err)
	}
	return repairs, nil
}

// Close closes the pool when the Postgres ledger owns it.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
