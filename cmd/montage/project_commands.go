package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/daemon"
	"montage/internal/workflow"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their recordings",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectAddCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectCancelCommand(ctx))

	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			proj, err := rt.projects.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created project %s (%s)\n", proj.Name, proj.ID)
			return nil
		},
	}
}

func newProjectAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <project-id> <file>...",
		Short: "Add uploaded recordings to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			d, err := daemon.New(rt.cfg, rt.jobs, rt.projects, rt.scheduler, rt.engine, rt.bus, rt.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range args[1:] {
				rec, err := d.AddRecording(cmd.Context(), args[0], path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "added recording %s (%.1fs) from %s\n", rec.ID, rec.Duration, path)
			}
			return nil
		},
	}
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			projects, err := rt.projects.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}

			rows := make([][]string, 0, len(projects))
			for _, proj := range projects {
				rows = append(rows, []string{
					proj.ID,
					proj.Name,
					string(proj.Status),
					proj.OutputPath,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Status", "Output"},
				rows,
			))
			return nil
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's recordings and stitching readiness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			proj, err := rt.projects.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			recordings, err := rt.projects.FindRecordings(cmd.Context(), proj.ID)
			if err != nil {
				return err
			}
			readiness, err := rt.stitching.CheckReadiness(cmd.Context(), proj.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) status=%s\n", proj.Name, proj.ID, proj.Status)
			if proj.OutputPath != "" {
				fmt.Fprintf(out, "output: %s\n", proj.OutputPath)
			}

			rows := make([][]string, 0, len(recordings))
			for _, rec := range recordings {
				offset := "-"
				if rec.Synchronized() {
					offset = fmt.Sprintf("%+.2fs", rec.Offset())
				}
				score := "-"
				if rec.Scored() {
					score = fmt.Sprintf("%d", rec.Score())
				}
				rows = append(rows, []string{
					rec.ID,
					rec.FilePath,
					fmt.Sprintf("%.1fs", rec.Duration),
					offset,
					score,
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Recording", "File", "Duration", "Offset", "Quality"},
					rows,
					2, 3, 4,
				))
			}

			if readiness.Ready {
				fmt.Fprintln(out, "ready to stitch")
			} else {
				fmt.Fprintf(out, "not ready to stitch: %s\n", strings.Join(readiness.Missing, "; "))
			}
			return nil
		},
	}
}

func newProjectCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <project-id>",
		Short: "Cancel a project's workflow and in-flight jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.orchestrator.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled project %s\n", args[0])
			return nil
		},
	}
}

func printStages(out io.Writer, summary *workflow.Summary) {
	stages := []struct {
		name string
		done bool
	}{
		{"upload", summary.Stages.Upload},
		{"processing", summary.Stages.Processing},
		{"sync", summary.Stages.Sync},
		{"quality", summary.Stages.Quality},
		{"stitching", summary.Stages.Stitching},
	}
	for _, stage := range stages {
		mark := " "
		if stage.done {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %s\n", mark, stage.name)
	}
}
