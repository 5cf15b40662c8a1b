package core

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/dsvmender/internal/config"
	"github.com/JonMunkholm/dsvmender/internal/mender"
	"github.com/JonMunkholm/dsvmender/internal/store"
)

// Service runs repair jobs and synchronous mend requests.
type Service struct {
	ledger  store.Ledger
	cfg     config.RepairConfig
	limiter *RepairLimiter

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

type activeJob struct {
	ID       string
	Profile  string
	FileName string
	ClientIP string
	Cancel   context.CancelFunc
	Done     chan struct{}

	mu        sync.Mutex
	progress  JobProgress
	result    *RepairResult
	output    bytes.Buffer
	listeners []chan JobProgress
	finished  bool
}

// NewService creates a Service. ledger may be nil, in which case jobs are
// only kept in memory until they expire.
func NewService(ledger store.Ledger, cfg config.RepairConfig) *Service {
	return &Service{
		ledger:  ledger,
		cfg:     cfg,
		limiter: NewRepairLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		jobs:    make(map[string]*activeJob),
	}
}

// ListProfiles describes every registered profile.
func (s *Service) ListProfiles() []ProfileInfo {
	profiles := All()
	infos := make([]ProfileInfo, len(profiles))
	for i, p := range profiles {
		maxDepth := p.MaxDepth
		if maxDepth == 0 {
			maxDepth = s.maxDepth()
		}
		threshold := p.Threshold()
		if p.OptimizeThreshold == nil {
			threshold = s.cfg.OptimizeThreshold
		}
		infos[i] = ProfileInfo{
			Name:              p.Name,
			Description:       p.Description,
			Delimiter:         p.Delimiter,
			Columns:           p.Columns,
			Header:            p.Header,
			MaxDepth:          maxDepth,
			OptimizeThreshold: threshold,
			Constraints:       len(p.Constraints),
			Estimations:       len(p.Estimations),
		}
	}
	return infos
}

// LimiterStatus reports job slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForJobs blocks until running jobs finish or ctx ends.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) maxDepth() int {
	if s.cfg.MaxDepth > 0 {
		return s.cfg.MaxDepth
	}
	return mender.DefaultMaxDepth
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 10 * time.Minute
}

func (s *Service) retainFor() time.Duration {
	if s.cfg.RetainFor > 0 {
		return s.cfg.RetainFor
	}
	return 15 * time.Minute
}

func (s *Service) job(jobID string) (*activeJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// update applies fn to the job's progress and notifies listeners.
func (job *activeJob) update(fn func(*JobProgress)) {
	job.mu.Lock()
	defer job.mu.Unlock()

	fn(&job.progress)
	for _, ch := range job.listeners {
		select {
		case ch <- job.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (job *activeJob) snapshot() JobProgress {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress
}

// finish stores the result, closes listeners and marks the job done.
func (job *activeJob) finish(result *RepairResult) {
	job.mu.Lock()
	job.result = result
	job.finished = true
	for _, ch := range job.listeners {
		close(ch)
	}
	job.listeners = nil
	job.mu.Unlock()

	close(job.Done)
}

// cleanup removes the job from tracking after a delay.
func (s *Service) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}
