package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/web/templates"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to disk.
const multipartMemory = 32 << 20

// RepairStarted is returned when a file repair job starts.
type RepairStarted struct {
	JobID       string `json:"job_id"`
	ProgressURL string `json:"progress_url"`
	ResultURL   string `json:"result_url"`
	OutputURL   string `json:"output_url"`
	ReportURL   string `json:"report_url"`
}

// handleRepair starts a repair job for an uploaded file.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")
	if _, ok := core.Get(name); !ok {
		respondErr(w, r, fmt.Errorf("%w: %s", core.ErrUnknownProfile, name))
		return
	}

	maxSize := s.cfg.Repair.MaxFileSize
	// Allow for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondErr(w, r, core.ErrFileTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondErr(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	// The job outlives the request and its multipart temp files.
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	jobID, err := s.service.StartRepair(WithRequestMetadata(r.Context(), r), name, path.Base(header.Filename), data)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, RepairStarted{
		JobID:       jobID,
		ProgressURL: "/api/jobs/" + jobID + "/progress",
		ResultURL:   "/api/jobs/" + jobID + "/result",
		OutputURL:   "/api/jobs/" + jobID + "/output",
		ReportURL:   "/jobs/" + jobID,
	})
}

// handleRepairProgress streams job progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter.
func (s *Server) handleRepairProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The event ID is the progress percentage, so a reconnecting client
	// skips events it already received.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - job finished
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && !progress.Phase.Done() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// RepairResultResponse is the JSON form of a finished job.
type RepairResultResponse struct {
	*core.RepairResult
	Duration   string           `json:"duration"`
	MendedRows []core.MendedRow `json:"mended_rows"`
	FailedRows []core.FailedRow `json:"failed_rows"`
}

func toResponse(result *core.RepairResult) RepairResultResponse {
	return RepairResultResponse{
		RepairResult: result,
		Duration:     result.Duration.String(),
		MendedRows:   result.MendedRows(),
		FailedRows:   result.FailedRows(),
	}
}

// handleRepairResult returns the result of a job, waiting for it to finish.
func (s *Server) handleRepairResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetJobResult(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(result))
}

// handleRepairOutput downloads the repaired file.
func (s *Server) handleRepairOutput(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	progress, err := s.service.GetJobProgress(jobID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, err := s.service.JobOutput(r.Context(), jobID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	name := "repaired_" + strings.ReplaceAll(progress.FileName, `"`, "")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.FormatInt(out.Size(), 10))
	io.Copy(w, out)
}

// handleCancelRepair cancels a running job.
func (s *Server) handleCancelRepair(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelJob(chi.URLParam(r, "jobID")); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleRepairReport renders the job report page. Finished jobs that
// expired from memory are read back from the ledger.
func (s *Server) handleRepairReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	params := templates.ReportParams{}

	progress, err := s.service.GetJobProgress(jobID)
	switch {
	case err == nil:
		params.Progress = progress
		if progress.Phase.Done() {
			params.Result, err = s.service.GetJobResult(r.Context(), jobID)
		}
	case errors.Is(err, core.ErrJobNotFound):
		params.Result, err = s.service.GetJobResult(r.Context(), jobID)
		if err == nil {
			params.Progress = core.JobProgress{
				JobID:    params.Result.JobID,
				Profile:  params.Result.Profile,
				FileName: params.Result.FileName,
				Phase:    core.PhaseComplete,
				Rows:     params.Result.Rows,
			}
			if params.Result.Error != "" {
				params.Progress.Phase = core.PhaseFailed
			}
		}
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := templates.Page("Repair "+params.Progress.FileName, templates.RepairReport(params))
	if err := page.Render(r.Context(), w); err != nil {
		respondErr(w, r, err)
	}
}
