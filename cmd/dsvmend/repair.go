package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/profile"
	"github.com/JonMunkholm/dsvmender/internal/store"
)

type repairOptions struct {
	outDir     string
	dropFailed bool
	threshold  int
	maxDepth   int
	ledgerPath string
	parallel   int
	noHeader   bool
}

func newRepairCmd() *cobra.Command {
	opts := &repairOptions{}

	cmd := &cobra.Command{
		Use:   "repair <profile> <file>...",
		Short: "Repair whole files",
		Long: `Repair one or more files with a profile. With a single file and no --out
the repaired rows go to stdout. A summary per file is printed to stderr.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := core.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownProfile, args[0])
			}
			files := args[1:]
			if opts.outDir == "" && len(files) > 1 {
				return errors.New("--out is required when repairing more than one file")
			}

			ropts := core.RepairOptions{
				MaxDepth:   opts.maxDepth,
				DropFailed: opts.dropFailed,
			}
			if cmd.Flags().Changed("threshold") {
				ropts.OptimizeThreshold = &opts.threshold
			}
			if opts.noHeader {
				header := false
				ropts.Header = &header
			}

			var ledger store.Ledger
			if opts.ledgerPath != "" {
				db, err := store.OpenSQLite(opts.ledgerPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				ledger = db
			}

			return repairFiles(cmd.Context(), p, files, opts, ropts, ledger, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outDir, "out", "o", "", "directory for repaired files (default: stdout)")
	flags.BoolVar(&opts.dropFailed, "drop-failed", false, "leave rows that cannot be repaired out of the output")
	flags.IntVar(&opts.threshold, "threshold", 0, "collapse runs of empty fields longer than this before mending")
	flags.IntVar(&opts.maxDepth, "max-depth", 20, "maximum field count difference a row may be repaired across")
	flags.StringVar(&opts.ledgerPath, "ledger", "", "SQLite file to record jobs and repaired rows in")
	flags.IntVarP(&opts.parallel, "parallel", "j", runtime.NumCPU(), "files repaired at once")
	flags.BoolVar(&opts.noHeader, "no-header", false, "treat the first line as data even if the profile expects a header")
	return cmd
}

// repairFiles repairs each file concurrently. The first failure cancels the
// files still running.
func repairFiles(ctx context.Context, p profile.Profile, files []string, opts *repairOptions, ropts core.RepairOptions, ledger store.Ledger, stdout, stderr io.Writer) error {
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	results := make([]*core.RepairResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))

	for i, file := range files {
		g.Go(func() error {
			dst := stdout
			if opts.outDir != "" {
				out, err := os.Create(filepath.Join(opts.outDir, filepath.Base(file)))
				if err != nil {
					return err
				}
				defer out.Close()
				dst = out
			}

			result, err := repairFile(ctx, p, file, dst, ropts, ledger)
			results[i] = result
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, result := range results {
		if result != nil {
			printSummary(stderr, result)
		}
	}
	return err
}

func repairFile(ctx context.Context, p profile.Profile, path string, dst io.Writer, opts core.RepairOptions, ledger store.Ledger) (*core.RepairResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var total int64
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	src, _ := dsv.Sanitize(f, total)

	w := bufio.NewWriter(dst)
	job := store.Job{
		ID:        uuid.New().String(),
		Profile:   p.Name,
		FileName:  filepath.Base(path),
		StartedAt: time.Now(),
	}

	result, err := core.RepairStream(ctx, p, src, w, opts)
	result.JobID = job.ID
	result.FileName = job.FileName
	if err == nil {
		err = w.Flush()
	}

	job.Status = store.StatusComplete
	if err != nil {
		job.Status = store.StatusFailed
		job.Error = err.Error()
	}
	job.RowsTotal = result.Rows.Total
	job.RowsValid = result.Rows.Valid
	job.RowsMended = result.Rows.Mended
	job.RowsFailed = result.Rows.Failed
	job.FinishedAt = time.Now()
	recordLedger(ledger, job, result.Repairs)

	return result, err
}

// recordLedger writes the job outside the repair context so a cancelled run
// is still recorded.
func recordLedger(ledger store.Ledger, job store.Job, repairs []store.Repair) {
	if ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ledger.RecordJob(ctx, job); err != nil {
		slog.Error("record repair job", "job_id", job.ID, "error", err)
		return
	}
	if err := ledger.RecordRepairs(ctx, job.ID, repairs); err != nil {
		slog.Error("record repaired rows", "job_id", job.ID, "error", err)
	}
}

func printSummary(w io.Writer, r *core.RepairResult) {
	fmt.Fprintf(w, "%s: %d rows, %d valid, %d mended, %d failed (%s)\n",
		r.FileName, r.Rows.Total, r.Rows.Valid, r.Rows.Mended, r.Rows.Failed,
		r.Duration.Round(time.Millisecond))
	for _, row := range r.FailedRows() {
		fmt.Fprintf(w, "  line %d: %s (%s)\n", row.LineNumber, row.Reason, row.Code)
	}
	if r.Truncated {
		fmt.Fprintf(w, "  more rows were repaired than are listed\n")
	}
}
