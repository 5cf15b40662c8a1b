package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/profile"
)

func newMendCmd() *cobra.Command {
	var (
		columns    int
		candidates bool
		fitFile    string
	)

	cmd := &cobra.Command{
		Use:   "mend <profile> <line>...",
		Short: "Repair single lines and show how they were scored",
		Long: `Repair single lines with a profile. Profiles with estimations learn from
valid rows only, so pass a sample of the file with --fit; valid lines given on
the command line are learned from too, in order.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := core.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownProfile, args[0])
			}

			var fit []string
			if fitFile != "" {
				var err error
				if fit, err = readFitLines(fitFile, p); err != nil {
					return err
				}
			}

			outcomes, err := newService().MendRows(cmd.Context(), p.Name, core.MendRequest{
				Lines:      args[1:],
				Columns:    columns,
				Candidates: candidates,
				Fit:        fit,
			})
			if err != nil {
				return err
			}
			return printOutcomes(cmd.OutOrStdout(), p.Delimiter, outcomes)
		},
	}

	cmd.Flags().IntVarP(&columns, "columns", "c", 0, "expected column count for profiles that take it from a header")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "list every scored candidate")
	cmd.Flags().StringVar(&fitFile, "fit", "", "file whose valid rows train the estimations before mending")
	return cmd
}

// readFitLines returns the non-blank lines of path, without the header when
// the profile expects one.
func readFitLines(path string, p profile.Profile) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _ := dsv.Sanitize(f, 0)
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), dsv.MaxLineSize)

	var lines []string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first && p.Header {
			first = false
			continue
		}
		first = false
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

func printOutcomes(w io.Writer, delimiter string, outcomes []core.RowOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(tw, "failed\t%s\t%s (%s)\n", strings.Join(o.Original, delimiter), o.Error, o.Code)
		case o.Mended:
			fmt.Fprintf(tw, "mended\t%s\n", strings.Join(o.Fields, delimiter))
		default:
			fmt.Fprintf(tw, "valid\t%s\n", strings.Join(o.Fields, delimiter))
		}

		for _, c := range o.Candidates {
			mark := " "
			if c.Best {
				mark = "*"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", mark, formatScore(c.Score), strings.Join(c.Fields, delimiter))
		}
	}
	return tw.Flush()
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}

func newOptimizeCmd() *cobra.Command {
	var (
		columns   int
		threshold int
	)

	cmd := &cobra.Command{
		Use:   "optimize <profile> <line>",
		Short: "Collapse runs of empty fields in a line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := core.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownProfile, args[0])
			}
			fields, err := newService().OptimizeRow(p.Name, columns, threshold, strings.Split(args[1], p.Delimiter))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(fields, p.Delimiter))
			return err
		},
	}

	cmd.Flags().IntVarP(&columns, "columns", "c", 0, "expected column count for profiles that take it from a header")
	cmd.Flags().IntVar(&threshold, "threshold", -1, "run length to keep; -1 uses the profile's threshold")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the available profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDELIMITER\tCOLUMNS\tHEADER\tRULES\tDESCRIPTION")
			for _, info := range newService().ListProfiles() {
				columns := "header"
				if info.Columns > 0 {
					columns = strconv.Itoa(info.Columns)
				}
				fmt.Fprintf(tw, "%s\t%q\t%s\t%t\t%d\t%s\n",
					info.Name, info.Delimiter, columns, info.Header,
					info.Constraints+info.Estimations, info.Description)
			}
			return tw.Flush()
		},
	}
}
