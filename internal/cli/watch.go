package cli

import (
	"context"
	"fmt"
	"maps"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"GapSight/internal/service/growthstream"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		once      bool
		reconnect time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live competitor growth from the dashboard server",
		Long: `Connect to the dashboard server's growth websocket and print the latest
follower count per competitor every time a new snapshot is polled. The
connection is re-established until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stream, err := growthstream.New(a.cfg.ServerURL, reconnect, 0)
			if err != nil {
				return err
			}
			defer stream.Close()
			return a.watch(ctx, stream, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "exit after the first growth frame")
	cmd.Flags().DurationVar(&reconnect, "reconnect", 5*time.Second, "delay before reconnecting")
	return cmd
}

func (a *app) watch(ctx context.Context, stream *growthstream.Client, once bool) error {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	err := stream.Connect(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	a.print.Success("connected to %s", stream.URL())

	for {
		frames, errs := stream.Read(ctx)
		for f := range frames {
			if a.printFrame(f) && once {
				return nil
			}
		}
		if err := <-errs; err != nil {
			a.print.Warning("%v", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if once {
			return fmt.Errorf("stream closed before a growth frame arrived")
		}
		a.print.Warning("reconnecting to %s", stream.URL())
		if err := stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.print.Warning("%v", err)
		}
	}
}

// printFrame reports whether f carried a growth chart.
func (a *app) printFrame(f growthstream.Frame) bool {
	if f.Type == "error" || f.Data == nil {
		a.print.Warning("server: %s", f.Error)
		return false
	}
	names := slices.Sorted(maps.Keys(f.Data.Latest))
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.FormatInt(f.Data.Latest[name], 10)})
	}
	a.print.Header(fmt.Sprintf("Growth at %s %s", f.SentAt.Local().Format(time.DateTime), a.print.Cyan("("+f.Data.Source+")")))
	if err := renderTable(a.print.out, []string{"COMPETITOR", "LATEST FOLLOWERS"}, rows); err != nil {
		a.print.Warning("render: %v", err)
	}
	return true
}
