package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nightshift-labs/nightshift/internal/orchestrator"
	"github.com/nightshift-labs/nightshift/internal/util"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a saved run report",
	Long: `Report renders the JSON run reports nightshift saves under a
repository's .nightshift/runs directory. With no flags it shows the most
recent run for the current repository.

Examples:
  # Most recent run in the current repository
  nightshift report

  # A specific run
  nightshift report --run 8d9f2c1e-3b4a-4f6d-9e7c-1a2b3c4d5e6f

  # List saved runs
  nightshift report --list

  # Machine-readable output
  nightshift report --json`,
	RunE: runReport,
}

var (
	reportRunID string
	reportRepo  string
	reportList  bool
	reportJSON  bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run ID (default: most recent)")
	reportCmd.Flags().StringVarP(&reportRepo, "repo", "r", "", "repository to read reports from (default: current directory)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "list saved runs instead of showing one")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the raw report JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	dir := reportRepo
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}
	root, err := workspace.FindGitRoot(dir)
	if err != nil {
		return err
	}

	if reportList {
		return listReports(cmd.OutOrStdout(), root)
	}

	var report *orchestrator.RunReport
	if reportRunID != "" {
		report, err = orchestrator.LoadReport(root, reportRunID)
	} else {
		report, err = orchestrator.LatestReport(root)
	}
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No run reports under %s.\n", orchestrator.RunsDir(root))
		return nil
	}

	if reportJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	renderReport(cmd.OutOrStdout(), report, stdoutIsTerminal())
	return nil
}

func listReports(w io.Writer, root string) error {
	reports, err := orchestrator.ListReports(root)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintf(w, "No run reports under %s.\n", orchestrator.RunsDir(root))
		return nil
	}

	fmt.Fprintf(w, "%-38s %-20s %8s %10s %7s %7s\n", "RUN", "STARTED", "GROUPS", "PUBLISHED", "LOCAL", "FAILED")
	for _, r := range reports {
		p, l, f := r.Tally()
		fmt.Fprintf(w, "%-38s %-20s %8d %10d %7d %7d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), len(r.Groups), p, l, f)
	}
	return nil
}

func renderReport(w io.Writer, r *orchestrator.RunReport, styled bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, tint(styled, titleStyle, "RUN "+r.ID))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "Repository: %s\n", r.Repo)
	if r.Backend != "" {
		fmt.Fprintf(w, "Backend:    %s\n", r.Backend)
	}
	fmt.Fprintf(w, "Started:    %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished:   %s (%s)\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", tint(styled, errorStyle, "Error:"), r.Error)
	}

	for _, g := range r.Groups {
		fmt.Fprintln(w)
		glyph, status, _ := summarizeGroup(g)
		style := warningStyle
		switch status {
		case "published":
			style = successStyle
		case "failed":
			style = errorStyle
		}
		fmt.Fprintf(w, "%s %s %s\n",
			tint(styled, style, glyph), g.Lead, tint(styled, mutedStyle, "("+status+")"))
		if g.Branch != "" {
			fmt.Fprintf(w, "  branch  %s\n", g.Branch)
		}
		if g.PullRequest != "" {
			fmt.Fprintf(w, "  pull    %s\n", g.PullRequest)
		}
		if g.Commits > 0 {
			fmt.Fprintf(w, "  commits %d\n", g.Commits)
		}
		if g.Error != "" {
			fmt.Fprintf(w, "  %s %s\n", tint(styled, errorStyle, "error"), util.FirstLine(g.Error))
		}
		for _, tr := range g.Tasks {
			fmt.Fprintf(w, "    %s %s%s\n",
				tint(styled, taskStyle(tr.Status), taskGlyph(tr.Status)), tr.Title, taskNote(tr))
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	p, l, f := r.Tally()
	fmt.Fprintf(w, "%d published, %d local, %d failed\n", p, l, f)
}

func taskGlyph(s orchestrator.TaskStatus) string {
	switch s {
	case orchestrator.TaskImplemented:
		return "✓"
	case orchestrator.TaskMarker:
		return "◌"
	case orchestrator.TaskFailed:
		return "✗"
	default:
		return "·"
	}
}

func taskStyle(s orchestrator.TaskStatus) lipgloss.Style {
	switch s {
	case orchestrator.TaskImplemented:
		return successStyle
	case orchestrator.TaskMarker:
		return warningStyle
	case orchestrator.TaskFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}

func taskNote(tr orchestrator.TaskReport) string {
	switch {
	case tr.Status == orchestrator.TaskMarker:
		return " (marker: " + tr.Marker + ")"
	case tr.Status == orchestrator.TaskImplemented && !tr.Committed:
		return " (no changes)"
	default:
		return ""
	}
}
