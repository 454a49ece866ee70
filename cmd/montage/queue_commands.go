package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"montage/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					1,
				))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var projectFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withQueueStore(func(store *queue.Store) error {
				var jobs []*queue.Job
				var err error
				if projectFilter != "" {
					jobs, err = store.ProjectJobs(cmd.Context(), projectFilter)
				} else {
					jobs, err = store.List(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}
				if projectFilter != "" && len(statuses) > 0 {
					jobs = filterJobs(jobs, statuses)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					detail := job.ErrorMessage
					if detail == "" && job.Status == queue.StatusProcessing {
						detail = fmt.Sprintf("%d%%", job.Progress)
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.ProjectID,
						string(job.Type),
						string(job.Status),
						job.CreatedAt.Local().Format(time.RFC3339),
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Project", "Type", "Status", "Created", "Detail"},
					rows,
					0,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringVarP(&projectFilter, "project", "p", "", "Filter by project ID")
	return cmd
}

func filterJobs(jobs []*queue.Job, statuses []queue.Status) []*queue.Job {
	keep := make(map[queue.Status]struct{}, len(statuses))
	for _, status := range statuses {
		keep[status] = struct{}{}
	}
	filtered := jobs[:0]
	for _, job := range jobs {
		if _, ok := keep[job.Status]; ok {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>...",
		Short: "Retry failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					replacement, err := store.Retry(cmd.Context(), id)
					if err != nil {
						fmt.Fprintf(out, "job %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "job %d requeued as job %d\n", id, replacement.ID)
				}
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel pending or processing jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if _, err := store.Cancel(cmd.Context(), id); err != nil {
						fmt.Fprintf(out, "job %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "cancelled job %d\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueStore(func(store *queue.Store) error {
				var removed int64
				var err error
				if clearAll {
					removed, err = store.Clear(cmd.Context())
				} else {
					removed, err = store.ClearCompleted(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job regardless of status")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue and database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueStore(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Total: %d\nPending: %d\nProcessing: %d\nCompleted: %d\nFailed: %d\nCancelled: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Completed,
					health.Failed,
					health.Cancelled,
				)

				db, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if db.Error != "" {
					fmt.Fprintf(out, "database: %s (%s)\n", db.DBPath, db.Error)
					return nil
				}
				fmt.Fprintf(out, "database: %s (integrity ok: %t)\n", db.DBPath, db.IntegrityCheck)
				return nil
			})
		},
	}
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
