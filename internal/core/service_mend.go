package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/mender"
	"github.com/JonMunkholm/dsvmender/internal/profile"
)

// DefaultMaxSyncRows caps a synchronous request when no limit is configured.
const DefaultMaxSyncRows = 1000

// MendRequest is a small batch repaired synchronously. Rows and Lines may
// both be set; lines are split on the profile delimiter and follow the rows.
type MendRequest struct {
	Rows  [][]string `json:"rows"`
	Lines []string   `json:"lines"`

	// Columns is required when the profile takes its column count from a
	// header.
	Columns int `json:"columns"`

	// OptimizeThreshold overrides the profile's threshold when set.
	OptimizeThreshold *int `json:"optimize_threshold"`

	// Candidates includes every scored candidate of mended rows.
	Candidates bool `json:"candidates"`

	// Fit lists sample lines that train the estimations before any row is
	// mended. Lines that are not valid rows are ignored.
	Fit []string `json:"fit"`
}

// MendRows repairs the request's rows in order with a fresh mender. The
// request's Fit lines are fitted first, then valid rows are fitted as they
// go, so both shape the repair of later rows. Profiles with estimations
// cannot repair anything until something was fitted. A row that cannot be
// repaired is reported in its outcome and does not fail the request.
func (s *Service) MendRows(ctx context.Context, profileName string, req MendRequest) ([]RowOutcome, error) {
	p, m, err := s.syncMender(profileName, req.Columns)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(req.Rows)+len(req.Lines))
	rows = append(rows, req.Rows...)
	for _, line := range req.Lines {
		rows = append(rows, dsv.Split(line, p.Delimiter))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", mender.ErrInvalidArgument)
	}
	limit := s.maxSyncRows()
	if len(rows) > limit {
		return nil, fmt.Errorf("%w: %d rows (at most %d expected)", mender.ErrInvalidArgument, len(rows), limit)
	}
	if len(req.Fit) > limit {
		return nil, fmt.Errorf("%w: %d fit lines (at most %d expected)", mender.ErrInvalidArgument, len(req.Fit), limit)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, line := range req.Fit {
		if _, err := m.FitIfValid(dsv.Split(line, p.Delimiter)); err != nil {
			return nil, err
		}
	}

	threshold := s.threshold(p)
	if req.OptimizeThreshold != nil {
		threshold = *req.OptimizeThreshold
	}

	outcomes := make([]RowOutcome, len(rows))
	for i, row := range rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		outcomes[i] = mendRow(m, p.Name, i, row, threshold, req.Candidates)
	}
	return outcomes, nil
}

func mendRow(m *mender.Mender, profileName string, index int, row []string, threshold int, withCandidates bool) RowOutcome {
	out := RowOutcome{Index: index, Original: row}
	if row == nil {
		row = []string{}
	}

	input := row
	if threshold >= 0 && len(row) > m.Length() {
		optimized, err := m.Optimize(threshold, row)
		if err != nil {
			return failedOutcome(out, profileName, err)
		}
		input = optimized
	}

	fields, err := m.Mend(input)
	if err != nil {
		return failedOutcome(out, profileName, err)
	}
	out.Fields = fields

	result, ok := m.LastResult()
	if !ok {
		out.Valid = true
		rowsTotal.WithLabelValues(profileName, outcomeValid).Inc()
		return out
	}

	out.Mended = true
	rowsTotal.WithLabelValues(profileName, outcomeMended).Inc()
	candidates := result.Candidates()
	mendCandidates.Observe(float64(len(candidates)))

	if withCandidates {
		best := result.Best()
		marked := false
		out.Candidates = make([]CandidateView, len(candidates))
		for j, c := range candidates {
			isBest := !marked && c.Equal(best)
			marked = marked || isBest
			out.Candidates[j] = CandidateView{
				Fields: c.Value(),
				Score:  jsonScore(c.Score()),
				Best:   isBest,
			}
		}
	}
	return out
}

func failedOutcome(out RowOutcome, profileName string, err error) RowOutcome {
	rowsTotal.WithLabelValues(profileName, outcomeFailed).Inc()
	out.Error = err.Error()
	out.Code = MapError(err).Code
	return out
}

// OptimizeRow collapses runs of empty fields in row with the profile's
// delimiter. A negative threshold takes the profile's.
func (s *Service) OptimizeRow(profileName string, columns, threshold int, row []string) ([]string, error) {
	p, m, err := s.syncMender(profileName, columns)
	if err != nil {
		return nil, err
	}
	if threshold < 0 {
		threshold = s.threshold(p)
	}
	if threshold < 0 {
		threshold = 0
	}
	return m.Optimize(threshold, row)
}

// syncMender builds a fresh mender for a synchronous request.
func (s *Service) syncMender(profileName string, columns int) (profile.Profile, *mender.Mender, error) {
	p, ok := Get(profileName)
	if !ok {
		return p, nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profileName)
	}
	if p.Columns == 0 && columns == 0 {
		return p, nil, fmt.Errorf("profile %s: %w", p.Name, ErrColumnsRequired)
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = s.maxDepth()
	}

	m, err := p.Build(columns)
	if err != nil {
		return p, nil, err
	}
	return p, m, nil
}

// threshold returns the profile's optimize threshold, or the configured
// default when the profile sets none.
func (s *Service) threshold(p profile.Profile) int {
	if p.OptimizeThreshold == nil {
		return s.cfg.OptimizeThreshold
	}
	return *p.OptimizeThreshold
}

func (s *Service) maxSyncRows() int {
	if s.cfg.MaxSyncRows > 0 {
		return s.cfg.MaxSyncRows
	}
	return DefaultMaxSyncRows
}
