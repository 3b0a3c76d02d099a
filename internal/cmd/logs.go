package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter nightshift's run log.

By default, shows the last 50 entries. Use flags to narrow down what a run
did overnight.

Examples:
  # Show the last 50 entries
  nightshift logs

  # Everything from a specific run
  nightshift logs --run 8d9f2c1e-3b4a-4f6d-9e7c-1a2b3c4d5e6f -n 0

  # Only warnings and errors from the last 12 hours
  nightshift logs --level warn --since 12h

  # Entries for one branch
  nightshift logs --branch nightshift/add-dark-mode-20260825-013000-9f2c

  # Export a run's entries for a bug report
  nightshift logs --run 8d9f2c1e... --export run.json`,
	RunE: runLogs,
}

var (
	logsTail   int
	logsLevel  string
	logsRun    string
	logsRepo   string
	logsBranch string
	logsGrep   string
	logsSince  time.Duration
	logsExport string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "only entries from this run ID")
	logsCmd.Flags().StringVar(&logsRepo, "repo", "", "only entries for this repository")
	logsCmd.Flags().StringVar(&logsBranch, "branch", "", "only entries for this branch")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "only entries whose message contains this text")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only entries newer than this age (e.g. 12h, 30m)")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "write matching entries to a file (.json/.txt/.csv)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	entries, err := logging.AggregateLogs(cfg.Logging.ResolvePath())
	if err != nil {
		return err
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		RunID:           logsRun,
		Repo:            logsRepo,
		Branch:          logsBranch,
		MessageContains: logsGrep,
	}
	if logsSince > 0 {
		filter.StartTime = time.Now().Add(-logsSince)
	}
	entries = logging.FilterLogs(entries, filter)

	if logsExport != "" {
		format := strings.TrimPrefix(filepath.Ext(logsExport), ".")
		if format == "txt" {
			format = "text"
		}
		if err := logging.ExportLogEntries(entries, logsExport, format); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s.\n", len(entries), logsExport)
		return nil
	}

	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching log entries.")
		return nil
	}

	printLogEntries(cmd.OutOrStdout(), entries, stdoutIsTerminal())
	return nil
}

func printLogEntries(w io.Writer, entries []logging.LogEntry, styled bool) {
	for _, e := range entries {
		level := fmt.Sprintf("%-5s", e.Level)
		fmt.Fprintf(w, "%s %s %s%s\n",
			tint(styled, mutedStyle, e.Timestamp.Format("2006-01-02 15:04:05")),
			tint(styled, levelStyle(e.Level), level),
			e.Message,
			logContext(e))
	}
}

func levelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case logging.LevelError:
		return errorStyle
	case logging.LevelWarn:
		return warningStyle
	case logging.LevelDebug:
		return mutedStyle
	default:
		return successStyle
	}
}

func logContext(e logging.LogEntry) string {
	var parts []string
	if e.Repo != "" {
		parts = append(parts, "repo="+e.Repo)
	}
	if e.Branch != "" {
		parts = append(parts, "branch="+e.Branch)
	}
	if e.Task != "" {
		parts = append(parts, "task="+e.Task)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}
