package core

import (
	"math"
	"time"

	"github.com/JonMunkholm/dsvmender/internal/store"
)

// JobPhase indicates the current stage of a repair job.
type JobPhase string

const (
	PhaseStarting  JobPhase = "starting"
	PhaseReading   JobPhase = "reading"
	PhaseMending   JobPhase = "mending"
	PhaseSaving    JobPhase = "saving"
	PhaseComplete  JobPhase = "complete"
	PhaseFailed    JobPhase = "failed"
	PhaseCancelled JobPhase = "cancelled"
)

// Done reports whether the phase is final.
func (p JobPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// RowCounts tallies the rows of a file.
type RowCounts struct {
	Total  int `json:"total"`
	Valid  int `json:"valid"`
	Mended int `json:"mended"`
	Failed int `json:"failed"`
}

// JobProgress is a snapshot of a running repair job.
type JobProgress struct {
	JobID      string    `json:"job_id"`
	Profile    string    `json:"profile"`
	FileName   string    `json:"file_name"`
	Phase      JobPhase  `json:"phase"`
	Rows       RowCounts `json:"rows"`
	BytesRead  int64     `json:"bytes_read"`
	BytesTotal int64     `json:"bytes_total"`
	Error      string    `json:"error,omitempty"`
}

// Percent returns byte-based progress (0-100).
func (p JobProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := int(p.BytesRead * 100 / p.BytesTotal)
	return min(pct, 100)
}

// FailedRow is a row that could not be repaired.
type FailedRow struct {
	FileName   string   `json:"file_name,omitempty"`
	LineNumber int      `json:"line"`
	Reason     string   `json:"reason"`
	Code       string   `json:"code"`
	Data       []string `json:"data"`
}

// RepairResult is the outcome of repairing one file.
type RepairResult struct {
	JobID    string    `json:"job_id,omitempty"`
	Profile  string    `json:"profile"`
	FileName string    `json:"file_name"`
	Columns  int       `json:"columns"`
	Header   []string  `json:"header,omitempty"`
	Rows     RowCounts `json:"rows"`

	// Repairs lists mended and failed rows in line order, up to
	// MaxRecordedRepairs entries.
	Repairs   []store.Repair `json:"-"`
	Truncated bool           `json:"truncated"`

	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// FailedRows returns the rows that could not be repaired.
func (r *RepairResult) FailedRows() []FailedRow {
	var failed []FailedRow
	for _, rep := range r.Repairs {
		if !rep.Failed() {
			continue
		}
		failed = append(failed, FailedRow{
			FileName:   r.FileName,
			LineNumber: rep.Line,
			Reason:     rep.Error,
			Code:       MapReason(rep.Error).Code,
			Data:       rep.Original,
		})
	}
	return failed
}

// MendedRows returns the rows that were repaired.
func (r *RepairResult) MendedRows() []MendedRow {
	var mended []MendedRow
	for _, rep := range r.Repairs {
		if rep.Failed() {
			continue
		}
		mended = append(mended, MendedRow{
			LineNumber: rep.Line,
			Original:   rep.Original,
			Repaired:   rep.Repaired,
			Score:      jsonScore(rep.Score),
			Candidates: rep.Candidates,
		})
	}
	return mended
}

// MendedRow is a repaired row as shown to users.
type MendedRow struct {
	LineNumber int      `json:"line"`
	Original   []string `json:"original"`
	Repaired   []string `json:"repaired"`
	Score      *float64 `json:"score"`
	Candidates int      `json:"candidates"`
}

// RowOutcome is the result of mending one row of a synchronous request.
type RowOutcome struct {
	Index      int             `json:"index"`
	Original   []string        `json:"original"`
	Fields     []string        `json:"fields,omitempty"`
	Valid      bool            `json:"valid"`
	Mended     bool            `json:"mended"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
	Candidates []CandidateView `json:"candidates,omitempty"`
}

// CandidateView is one scored candidate. Score is null for rows a
// constraint rejected.
type CandidateView struct {
	Fields []string `json:"fields"`
	Score  *float64 `json:"score"`
	Best   bool     `json:"best,omitempty"`
}

// ProfileInfo describes a registered profile for listings.
type ProfileInfo struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Delimiter         string `json:"delimiter"`
	Columns           int    `json:"columns"`
	Header            bool   `json:"header"`
	MaxDepth          int    `json:"max_depth"`
	OptimizeThreshold int    `json:"optimize_threshold"`
	Constraints       int    `json:"constraints"`
	Estimations       int    `json:"estimations"`
}

// jsonScore maps NaN, which JSON cannot carry, to nil.
func jsonScore(score float64) *float64 {
	if math.IsNaN(score) {
		return nil
	}
	return &score
}
