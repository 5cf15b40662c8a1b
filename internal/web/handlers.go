package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/dsv"
)

// maxSyncBody bounds the JSON body of synchronous requests.
const maxSyncBody = 4 << 20

// handleHealth reports liveness and job slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"profiles": core.ProfileCount(),
		"jobs":     s.service.LimiterStatus(),
	})
}

// handleListProfiles lists the registered profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListProfiles())
}

// handleLimiterStatus returns the current state of the job limiter.
// Used for monitoring and to check if the server can take more files.
func (s *Server) handleLimiterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LimiterStatus())
}

// MendResponse is the body returned by the mend endpoint.
type MendResponse struct {
	Profile string            `json:"profile"`
	Rows    []core.RowOutcome `json:"rows"`
	Summary core.RowCounts    `json:"summary"`
}

// handleMend repairs a small batch of rows synchronously.
func (s *Server) handleMend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")

	var req core.MendRequest
	if err := decodeJSON(w, r, maxSyncBody, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	outcomes, err := s.service.MendRows(r.Context(), name, req)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	resp := MendResponse{Profile: name, Rows: outcomes}
	for _, o := range outcomes {
		resp.Summary.Total++
		switch {
		case o.Error != "":
			resp.Summary.Failed++
		case o.Mended:
			resp.Summary.Mended++
		default:
			resp.Summary.Valid++
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// OptimizeRequest is the body of the optimize endpoint. Line is split on
// the profile delimiter when Row is empty.
type OptimizeRequest struct {
	Row       []string `json:"row"`
	Line      string   `json:"line"`
	Columns   int      `json:"columns"`
	Threshold *int     `json:"threshold"`
}

// handleOptimize collapses runs of empty fields in one row.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")

	var req OptimizeRequest
	if err := decodeJSON(w, r, maxSyncBody, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	row := req.Row
	if row == nil {
		p, ok := core.Get(name)
		if !ok {
			respondErr(w, r, core.ErrUnknownProfile)
			return
		}
		row = dsv.Split(req.Line, p.Delimiter)
	}
	threshold := -1
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	fields, err := s.service.OptimizeRow(name, req.Columns, threshold, row)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"fields": fields})
}
