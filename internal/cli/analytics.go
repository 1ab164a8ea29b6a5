package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"GapSight/internal/services/timeseries"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSummaryCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the headline dashboard metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			s, err := a.api.Summary(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.print.out, s)
			}
			a.print.Header("Summary")
			return renderTable(a.print.out, []string{"METRIC", "VALUE"}, [][]string{
				{"Followers", strconv.FormatInt(s.FollowerCount, 10)},
				{"Follower growth", fmt.Sprintf("%.2f%%", s.FollowerGrowthPct)},
				{"Avg engagement", fmt.Sprintf("%.2f", s.AvgEngagement)},
				{"Top content type", s.TopContentType},
				{"Posts per week", strconv.Itoa(s.PostsPerWeek)},
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newGapsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Show content gaps against competitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			gaps, err := a.api.Gaps(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.print.out, gaps)
			}
			a.print.Header("Content gaps")
			rows := make([][]string, 0, len(gaps))
			for _, g := range gaps {
				gap := strconv.Itoa(g.Gap)
				if g.Gap > 0 {
					gap = a.print.Red(gap)
				}
				rows = append(rows, []string{g.Competitor, g.TheirTopContent, strconv.Itoa(g.YourUsage), gap})
			}
			return renderTable(a.print.out, []string{"COMPETITOR", "THEIR TOP CONTENT", "YOUR USAGE", "GAP"}, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newGrowthCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		policy string
	)
	cmd := &cobra.Command{
		Use:   "growth",
		Short: "Show competitor follower growth aligned by date",
		Long: `Fetch every competitor's follower series and print them as one table,
a row per date and a column per competitor. A dash marks a competitor with
no sample that day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := timeseries.ParseDuplicatePolicy(policy)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			series, err := a.api.Growth(ctx)
			if err != nil {
				return err
			}
			aligned, err := timeseries.Align(series, timeseries.WithDuplicatePolicy(p))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.print.out, aligned)
			}
			if aligned.Len() == 0 {
				a.print.Warning("no growth data")
				return nil
			}
			a.print.Header("Competitor growth")
			if err := renderAligned(a.print, aligned.Names(), aligned.Rows()); err != nil {
				return err
			}
			fmt.Fprintln(a.print.out, a.print.Dim(fmt.Sprintf("%d dates, %d series", aligned.Len(), len(aligned.Names()))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&policy, "policy", "first", "duplicate date policy: first, last, reject")
	return cmd
}

// renderAligned prints one row per date and one column per series; "-" marks absence.
func renderAligned(p *printer, names []string, rows []timeseries.AlignedRow) error {
	header := append([]string{"DATE"}, names...)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, 0, len(header))
		line = append(line, r.Date)
		for _, name := range names {
			if v, ok := r.Value(name); ok {
				line = append(line, strconv.FormatInt(v, 10))
			} else {
				line = append(line, p.Dim("-"))
			}
		}
		out = append(out, line)
	}
	return renderTable(p.out, header, out)
}
