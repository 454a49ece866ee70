package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"montage/internal/daemon"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the processing daemon in the foreground",
		Long: "Runs the job scheduler in the foreground, executing queued sync, " +
			"quality, and stitching jobs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}

			d, err := daemon.New(rt.cfg, rt.jobs, rt.projects, rt.scheduler, rt.engine, rt.bus, rt.logger)
			if err != nil {
				rt.close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "montage daemon running (log: %s)\n", d.LogPath())

			<-runCtx.Done()
			d.Stop()
			fmt.Fprintln(cmd.OutOrStdout(), "montage daemon stopped")
			return nil
		},
	}
}
