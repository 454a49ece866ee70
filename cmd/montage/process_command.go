package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var retry bool

	cmd := &cobra.Command{
		Use:   "process <project-id>",
		Short: "Run the full pipeline for a project",
		Long: "Runs validation, synchronization, quality assessment, and " +
			"stitching for the project and waits for completion.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.scheduler.Start(runCtx); err != nil {
				return err
			}
			defer rt.scheduler.Stop()

			summary, err := rt.orchestrator.Execute(runCtx, args[0])
			if retry && err != nil {
				summary, err = rt.orchestrator.Retry(runCtx, args[0])
			}
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(out, "workflow failed: %s\n", summary.Error)
				printStages(out, summary)
				return err
			}

			fmt.Fprintf(out, "workflow complete: %s\n", summary.OutputPath)
			printStages(out, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&retry, "retry", false, "Retry once from the beginning on failure")
	return cmd
}
