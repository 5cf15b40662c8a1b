package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dsvmender/internal/core"
)

// ReportParams feeds RepairReport.
type ReportParams struct {
	Progress core.JobProgress
	Result   *core.RepairResult
}

// RepairReport shows a job's counters and the rows it mended or could not
// repair. A job still running shows its progress only.
func RepairReport(p ReportParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<h1>Repair `)
		h.text(p.Progress.FileName)
		h.raw(`</h1><p class="muted">Job `)
		h.text(p.Progress.JobID)
		h.raw(` &middot; profile `)
		h.text(p.Progress.Profile)
		h.raw(` &middot; `)
		h.text(string(p.Progress.Phase))
		h.raw(`</p>`)

		if p.Result == nil {
			h.raw(`<p>`)
			h.textf("%d%% read, %d rows so far.", p.Progress.Percent(), p.Progress.Rows.Total)
			h.raw(`</p>`)
			return h.err
		}

		if p.Result.Error != "" {
			msg := core.MapReason(p.Result.Error)
			h.render(ctx, ErrorAlert(msg.Message, msg.Action, msg.Code))
		}

		rows := p.Result.Rows
		h.raw(`<table><tr><th>Rows</th><th>Valid</th><th>Mended</th><th>Failed</th><th>Duration</th></tr><tr>`)
		for _, n := range []int{rows.Total, rows.Valid, rows.Mended, rows.Failed} {
			h.raw(`<td>`)
			h.text(strconv.Itoa(n))
			h.raw(`</td>`)
		}
		h.raw(`<td>`)
		h.text(p.Result.Duration.String())
		h.raw(`</td></tr></table>`)

		if mended := p.Result.MendedRows(); len(mended) > 0 {
			h.raw(`<h2>Mended rows</h2><table><tr><th>Line</th><th>Original</th><th>Repaired</th><th>Score</th><th>Candidates</th></tr>`)
			for _, row := range mended {
				h.raw(`<tr><td>`)
				h.text(strconv.Itoa(row.LineNumber))
				h.raw(`</td>`)
				cells(h, row.Original)
				cells(h, row.Repaired)
				h.raw(`<td>`)
				if row.Score != nil {
					h.text(strconv.FormatFloat(*row.Score, 'f', 3, 64))
				} else {
					h.raw(`<span class="muted">n/a</span>`)
				}
				h.raw(`</td><td>`)
				h.text(strconv.Itoa(row.Candidates))
				h.raw(`</td></tr>`)
			}
			h.raw(`</table>`)
		}

		if failed := p.Result.FailedRows(); len(failed) > 0 {
			h.raw(`<h2>Rows that could not be repaired</h2><table><tr><th>Line</th><th>Row</th><th>Code</th><th>Reason</th></tr>`)
			for _, row := range failed {
				h.raw(`<tr><td>`)
				h.text(strconv.Itoa(row.LineNumber))
				h.raw(`</td>`)
				cells(h, row.Data)
				h.raw(`<td>`)
				h.text(row.Code)
				h.raw(`</td><td>`)
				h.text(row.Reason)
				h.raw(`</td></tr>`)
			}
			h.raw(`</table>`)
		}

		if p.Result.Truncated {
			h.raw(`<p class="muted">`)
			h.textf("Only the first %d repaired rows are listed.", core.MaxRecordedRepairs)
			h.raw(`</p>`)
		}
		return h.err
	})
}

// cells renders fields as one cell, separated by a visible marker.
func cells(h *html, fields []string) {
	h.raw(`<td class="cell">`)
	for i, f := range fields {
		if i > 0 {
			h.raw(`<span class="muted"> &#9474; </span>`)
		}
		h.text(f)
	}
	h.raw(`</td>`)
}
