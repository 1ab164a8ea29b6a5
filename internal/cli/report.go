package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"GapSight/internal/services/upstream"
)

func newReportCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "report <name>",
		Short: "Download a report",
		Long: `Download a report from the analytics API.

Reports: dashboard.csv, dashboard.pdf, competitors.csv, competitors.pdf, summary.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, format, err := upstream.SplitReportName(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0]
			}

			// Write to a temp file next to the target so a failed download leaves nothing behind.
			tmp, err := os.CreateTemp(filepath.Dir(output), ".gapsightctl-*")
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer os.Remove(tmp.Name())

			ctx, cancel := a.context(cmd)
			defer cancel()
			rep, err := a.api.Report(ctx, kind, format, tmp)
			if cerr := tmp.Close(); err == nil && cerr != nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), output); err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			a.print.Success("saved %s (%d bytes) to %s", rep.Name, rep.Size, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default is the report name)")
	return cmd
}
