// Package cli implements gapsightctl, a terminal client for the GapSight analytics API.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"GapSight/internal/services/upstream"
	xhttp "GapSight/pkg/http"
)

var version = "dev"

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) { version = v }

// app is the state shared by every subcommand once flags and config are resolved.
type app struct {
	cfgFile string
	cfg     *Config
	print   *printer
	api     *upstream.Client
}

// NewRootCommand builds the command tree. Each call returns an independent tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gapsightctl",
		Short: "Terminal client for GapSight analytics",
		Long: `gapsightctl reads the GapSight analytics API and prints the dashboard
data as tables.

Example usage:
  gapsightctl summary                  # Headline metrics
  gapsightctl growth                   # Competitor growth aligned by date
  gapsightctl growth --policy reject   # Fail on duplicate dates
  gapsightctl gaps                     # Content gaps against competitors
  gapsightctl report dashboard.csv -o dashboard.csv
  gapsightctl watch                    # Follow live growth from the dashboard server`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .gapsightctl.yaml)")
	pf.String("api-url", "", "GapSight analytics API base URL")
	pf.String("server-url", "", "dashboard server URL, used by watch")
	pf.Duration("timeout", 0, "per-request timeout")
	pf.String("color", "", "color output: auto, always, never")

	root.AddCommand(
		newSummaryCommand(a),
		newGrowthCommand(a),
		newGapsCommand(a),
		newReportCommand(a),
		newWatchCommand(a),
		newVersionCommand(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.print = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Color)
	a.api = upstream.New(cfg.APIURL,
		upstream.WithTimeout(cfg.Timeout),
		upstream.WithRetry(cfg.Retries, 200*time.Millisecond),
		upstream.WithHTTPOptions(xhttp.WithUserAgent("gapsightctl/"+version)),
	)
	return nil
}

// context bounds one command by the configured timeout on top of cobra's context.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gapsightctl version",
		Args:  cobra.NoArgs,
		// The version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gapsightctl %s\n", version)
		},
	}
}
