package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/profile"
	"github.com/JonMunkholm/dsvmender/internal/store"
)

// ledgerTimeout bounds ledger writes, which run after the job context may
// already be cancelled.
const ledgerTimeout = 30 * time.Second

// StartRepair begins an asynchronous repair of data with the named profile.
// It returns the job ID immediately; use SubscribeProgress for updates.
//
// The input is sanitized on the fly: a UTF-8 BOM is dropped and invalid
// UTF-8 is replaced.
//
// Returns ErrTooManyJobs if the concurrent job limit is reached and no slot
// becomes available within the wait time.
func (s *Service) StartRepair(ctx context.Context, profileName, fileName string, data []byte) (string, error) {
	p, ok := Get(profileName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProfile, profileName)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}

	// Acquire job slot (blocks until available or timeout)
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithTimeout(context.Background(), s.timeout())

	job := &activeJob{
		ID:       jobID,
		Profile:  p.Name,
		FileName: fileName,
		ClientIP: ClientIPFromContext(ctx),
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: JobProgress{
			JobID:      jobID,
			Profile:    p.Name,
			FileName:   fileName,
			Phase:      PhaseStarting,
			BytesTotal: int64(len(data)),
		},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	src, counter := dsv.Sanitize(bytes.NewReader(data), int64(len(data)))

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in repair job",
					"job_id", jobID,
					"profile", p.Name,
					"panic", r,
				)
				msg := fmt.Sprintf("internal error: %v", r)
				job.update(func(pr *JobProgress) {
					pr.Phase = PhaseFailed
					pr.Error = msg
				})
				job.finish(&RepairResult{JobID: jobID, Profile: p.Name, FileName: fileName, Error: msg})
				s.cleanup(jobID, s.retainFor())
			}
		}()

		result := s.processRepair(jobCtx, job, p, src, counter)
		job.finish(result)
		s.cleanup(jobID, s.retainFor())
	}()

	return jobID, nil
}

func (s *Service) processRepair(ctx context.Context, job *activeJob, p profile.Profile, src io.Reader, counter *dsv.CountingReader) *RepairResult {
	jobsActive.Inc()
	defer jobsActive.Dec()

	started := time.Now()
	s.recordJob(store.Job{
		ID:        job.ID,
		Profile:   p.Name,
		FileName:  job.FileName,
		Status:    store.StatusRunning,
		StartedAt: started,
	})

	if p.OptimizeThreshold == nil && s.cfg.OptimizeThreshold >= 0 {
		threshold := s.cfg.OptimizeThreshold
		p.OptimizeThreshold = &threshold
	}

	job.update(func(pr *JobProgress) { pr.Phase = PhaseMending })

	result, err := RepairStream(ctx, p, src, &job.output, RepairOptions{
		MaxDepth: s.maxDepth(),
		OnProgress: func(rows RowCounts) {
			job.update(func(pr *JobProgress) {
				pr.Rows = rows
				pr.BytesRead = counter.BytesRead()
			})
		},
	})
	result.JobID = job.ID
	result.FileName = job.FileName

	phase, status := PhaseComplete, store.StatusComplete
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		phase, status = PhaseCancelled, store.StatusCancelled
		result.Error = ErrJobCancelled.Error()
	default:
		phase, status = PhaseFailed, store.StatusFailed
		result.Error = err.Error()
	}

	job.update(func(pr *JobProgress) {
		pr.Phase = PhaseSaving
		pr.Rows = result.Rows
		pr.BytesRead = counter.BytesRead()
	})

	s.recordJob(store.Job{
		ID:         job.ID,
		Profile:    p.Name,
		FileName:   job.FileName,
		Status:     status,
		RowsTotal:  result.Rows.Total,
		RowsValid:  result.Rows.Valid,
		RowsMended: result.Rows.Mended,
		RowsFailed: result.Rows.Failed,
		Error:      result.Error,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	s.recordRepairs(job.ID, result.Repairs)

	jobsTotal.WithLabelValues(p.Name, status).Inc()
	slog.Info("repair finished",
		"job_id", job.ID,
		"profile", p.Name,
		"file", job.FileName,
		"client_ip", job.ClientIP,
		"status", status,
		"rows", result.Rows.Total,
		"mended", result.Rows.Mended,
		"failed", result.Rows.Failed,
		"duration", result.Duration,
	)

	job.update(func(pr *JobProgress) {
		pr.Phase = phase
		pr.Error = result.Error
	})
	return result
}

// recordJob writes the job to the ledger. Failures are logged; the repaired
// output stays available either way.
func (s *Service) recordJob(job store.Job) {
	if s.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()

	if err := s.ledger.RecordJob(ctx, job); err != nil {
		slog.Error("record repair job",
			"job_id", job.ID,
			"status", job.Status,
			"error", fmt.Errorf("%w: %w", ErrLedger, err),
		)
	}
}

func (s *Service) recordRepairs(jobID string, repairs []store.Repair) {
	if s.ledger == nil || len(repairs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()

	if err := s.ledger.RecordRepairs(ctx, jobID, repairs); err != nil {
		slog.Error("record repaired rows",
			"job_id", jobID,
			"rows", len(repairs),
			"error", fmt.Errorf("%w: %w", ErrLedger, err),
		)
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the job completes.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan JobProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()

	// Send current progress immediately
	ch <- job.progress
	if job.finished {
		close(ch)
		return ch, nil
	}
	job.listeners = append(job.listeners, ch)
	return ch, nil
}

// GetJobProgress returns the current progress without blocking.
func (s *Service) GetJobProgress(jobID string) (JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, err
	}
	return job.snapshot(), nil
}

// CancelJob cancels a running job.
func (s *Service) CancelJob(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// GetJobResult returns the result of a job, waiting for it to finish. Jobs
// that expired from memory are read back from the ledger when one is
// configured.
func (s *Service) GetJobResult(ctx context.Context, jobID string) (*RepairResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return s.ledgerResult(ctx, jobID, err)
	}

	select {
	case <-job.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.result, nil
}

func (s *Service) ledgerResult(ctx context.Context, jobID string, notFound error) (*RepairResult, error) {
	if s.ledger == nil {
		return nil, notFound
	}

	rec, err := s.ledger.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedger, err)
	}

	repairs, err := s.ledger.ListRepairs(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedger, err)
	}

	result := &RepairResult{
		JobID:    rec.ID,
		Profile:  rec.Profile,
		FileName: rec.FileName,
		Rows: RowCounts{
			Total:  rec.RowsTotal,
			Valid:  rec.RowsValid,
			Mended: rec.RowsMended,
			Failed: rec.RowsFailed,
		},
		Repairs:   repairs,
		Truncated: len(repairs) >= MaxRecordedRepairs,
		Error:     rec.Error,
	}
	if !rec.FinishedAt.IsZero() {
		result.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	}
	return result, nil
}

// JobOutput returns the repaired file of a completed job, waiting for the
// job to finish.
func (s *Service) JobOutput(ctx context.Context, jobID string) (*bytes.Reader, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch p := job.snapshot(); p.Phase {
	case PhaseComplete:
		return bytes.NewReader(job.output.Bytes()), nil
	case PhaseCancelled:
		return nil, ErrJobCancelled
	default:
		return nil, fmt.Errorf("job %s failed: %s", jobID, p.Error)
	}
}
