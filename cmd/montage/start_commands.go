package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"montage/internal/queue"
)

// startSpec describes one individually runnable pipeline stage.
type startSpec struct {
	use     string
	short   string
	jobType queue.Type
}

func newStartCommands(ctx *commandContext) []*cobra.Command {
	specs := []startSpec{
		{
			use:     "sync <project-id>",
			short:   "Queue synchronization for a project",
			jobType: queue.TypeSync,
		},
		{
			use:     "analyze <project-id>",
			short:   "Queue quality analysis for a project",
			jobType: queue.TypeQualityAnalysis,
		},
		{
			use:     "stitch <project-id>",
			short:   "Queue stitching for a project",
			jobType: queue.TypeStitching,
		},
	}

	commands := make([]*cobra.Command, 0, len(specs))
	for _, spec := range specs {
		commands = append(commands, newStartCommand(ctx, spec))
	}
	return commands
}

func newStartCommand(ctx *commandContext, spec startSpec) *cobra.Command {
	var wait bool
	var priority int

	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !wait {
				return ctx.withQueueStore(func(store *queue.Store) error {
					job, err := store.Add(cmd.Context(), args[0], spec.jobType, priority)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "queued %s job %d for project %s\n", job.Type, job.ID, job.ProjectID)
					return nil
				})
			}

			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.scheduler.Start(cmd.Context()); err != nil {
				return err
			}
			defer rt.scheduler.Stop()

			job, err := rt.scheduler.AddJob(cmd.Context(), args[0], spec.jobType, priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "running %s job %d for project %s\n", job.Type, job.ID, job.ProjectID)

			final, err := waitForJob(cmd.Context(), rt.scheduler, job.ID)
			if err != nil {
				return err
			}
			if final.Status != queue.StatusCompleted {
				return fmt.Errorf("%s job %d %s: %s", final.Type, final.ID, final.Status, final.ErrorMessage)
			}
			fmt.Fprintf(out, "%s job %d completed\n", final.Type, final.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Run the job in-process and wait for it to finish")
	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority; higher runs first")
	return cmd
}

func waitForJob(ctx context.Context, scheduler *queue.Scheduler, id int64) (*queue.Job, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := scheduler.GetJob(ctx, id)
			if err != nil {
				return nil, err
			}
			if job == nil {
				return nil, fmt.Errorf("job %d disappeared", id)
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}
	}
}
