package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"montage/internal/deps"
	"montage/internal/project"
	"montage/internal/queue"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline, queue, and database status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			health, err := rt.jobs.Health(cmd.Context())
			if err != nil {
				return err
			}
			queueKind := statusOK
			queueMsg := fmt.Sprintf("%d jobs total", health.Total)
			switch {
			case health.Failed > 0:
				queueKind = statusWarn
				queueMsg = fmt.Sprintf("%d jobs total, %d failed", health.Total, health.Failed)
			case health.Processing > 0:
				queueKind = statusInfo
				queueMsg = fmt.Sprintf("%d jobs total, %d processing", health.Total, health.Processing)
			}

			db, err := rt.jobs.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			dbKind := statusOK
			dbMsg := db.DBPath
			if db.Error != "" || !db.IntegrityCheck {
				dbKind = statusError
				if db.Error != "" {
					dbMsg = db.Error
				} else {
					dbMsg = "integrity check failed"
				}
			}

			projects, err := rt.projects.List(cmd.Context())
			if err != nil {
				return err
			}
			counts := make(map[project.Status]int)
			for _, proj := range projects {
				counts[proj.Status]++
			}
			projectKind := statusInfo
			if counts[project.StatusError] > 0 {
				projectKind = statusWarn
			}

			fmt.Fprintln(out, renderStatusLine("Queue", queueKind, queueMsg, colorize))
			fmt.Fprintln(out, renderStatusLine("Database", dbKind, dbMsg, colorize))
			fmt.Fprintln(out, renderStatusLine("Projects", projectKind, formatProjectCounts(len(projects), counts), colorize))
			for _, tool := range deps.Check(deps.ForConfig(rt.cfg)) {
				kind := statusOK
				msg := tool.Command
				if !tool.Available {
					kind = statusError
					if tool.Optional {
						kind = statusWarn
					}
					msg = tool.Detail
				}
				fmt.Fprintln(out, renderStatusLine(tool.Name, kind, msg, colorize))
			}

			pending, err := rt.jobs.List(cmd.Context(), queue.StatusPending, queue.StatusProcessing)
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(pending))
				for _, job := range pending {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.ProjectID,
						string(job.Type),
						string(job.Status),
						fmt.Sprintf("%d%%", job.Progress),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Project", "Type", "Status", "Progress"},
					rows,
					0, 4,
				))
			}
			return nil
		},
	}
}

func formatProjectCounts(total int, counts map[project.Status]int) string {
	if total == 0 {
		return "none"
	}
	msg := fmt.Sprintf("%d total", total)
	if active := counts[project.StatusProcessing]; active > 0 {
		msg += fmt.Sprintf(", %d processing", active)
	}
	if failed := counts[project.StatusError]; failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	return msg
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
