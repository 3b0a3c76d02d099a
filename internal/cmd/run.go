package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/manifest"
	"github.com/nightshift-labs/nightshift/internal/orchestrator"
	"github.com/nightshift-labs/nightshift/internal/pipeline"
	"github.com/nightshift-labs/nightshift/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process task checklists and open pull requests",
	Long: `Run works through every repository in the manifest (or a single
repository given with --repo): it parses the task checklist, implements each
unchecked task in its own git worktree, commits per task, and opens one pull
request per task group.

Progress is written to the log file; a JSON report lands under each
repository's .nightshift/runs directory. The exit status is non-zero when
any group failed, so a cron job notices partial success.

Examples:
  # Process every repository in ~/.config/nightshift/repos.yaml
  nightshift run

  # Process a single repository
  nightshift run --repo ~/src/widgets

  # Use a different checklist file and keep everything local
  nightshift run --repo . --tasks BACKLOG.md --no-publish`,
	RunE: runRun,
}

var (
	runManifest  string
	runRepo      string
	runTasks     string
	runNoPublish bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runManifest, "manifest", "m", "", "repos manifest file (default: "+config.ConfigDir()+"/repos.yaml)")
	runCmd.Flags().StringVarP(&runRepo, "repo", "r", "", "process a single repository instead of the manifest")
	runCmd.Flags().StringVar(&runTasks, "tasks", "", "checklist file relative to each repository root")
	runCmd.Flags().BoolVar(&runNoPublish, "no-publish", false, "skip pushing and pull requests, keep changes local")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runTasks != "" {
		cfg.Tasks.File = runTasks
	}
	if runNoPublish {
		cfg.Publish.Enabled = false
	}

	logger, err := openLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logger.Close()

	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM stop the run at the next task-group boundary; the
	// orchestrator never kills work mid-task.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, runErr := orch.Run(ctx, targets)
	printRunSummary(cmd.OutOrStdout(), reports)

	if runErr != nil {
		return runErr
	}

	var failed int
	for _, r := range reports {
		_, _, f := r.Tally()
		failed += f
	}
	if failed > 0 {
		return fmt.Errorf("%d group(s) failed; workspaces are preserved, see %s for recovery steps",
			failed, cfg.Logging.ResolvePath())
	}
	return nil
}

// openLogger builds the run logger from config. With file logging disabled,
// entries go to stderr so cron mail still captures them.
func openLogger(cfg *config.Config) (*logging.Logger, error) {
	logPath := ""
	if cfg.Logging.Enabled {
		logPath = cfg.Logging.ResolvePath()
	}
	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}
	return logging.NewLogger(logPath, cfg.Logging.Level, rotation, os.Stderr)
}

func resolveTargets(cfg *config.Config) ([]manifest.Target, error) {
	if runRepo != "" {
		return manifest.Single(runRepo, cfg.Tasks.File, ""), nil
	}

	path := runManifest
	if path == "" {
		path = cfg.Manifest.ResolvePath()
	}
	targets, err := manifest.Load(path, cfg.Tasks.File)
	if errors.Is(err, manifest.ErrNotFound) {
		return nil, fmt.Errorf("no manifest at %s; create one listing your repositories, or pass --repo to process a single repository", path)
	}
	return targets, err
}

func printRunSummary(w io.Writer, reports []*orchestrator.RunReport) {
	if len(reports) == 0 {
		return
	}
	styled := stdoutIsTerminal()

	fmt.Fprintln(w)
	fmt.Fprintln(w, tint(styled, titleStyle, "RUN SUMMARY"))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	var published, localOnly, failed int
	for _, r := range reports {
		fmt.Fprintln(w, r.Repo)
		if r.Error != "" && len(r.Groups) == 0 {
			fmt.Fprintf(w, "  %s %s\n", tint(styled, errorStyle, "✗"), r.Error)
		}
		for _, g := range r.Groups {
			glyph, status, detail := summarizeGroup(g)
			style := mutedStyle
			switch status {
			case "published":
				style = successStyle
			case "local only":
				style = warningStyle
			case "failed":
				style = errorStyle
			}
			fmt.Fprintf(w, "  %s %-40s %-11s %s\n",
				tint(styled, style, glyph), util.TruncateString(g.Lead, 40), status, detail)
		}
		p, l, f := r.Tally()
		published += p
		localOnly += l
		failed += f
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "%d published, %d local, %d failed\n", published, localOnly, failed)
}

// summarizeGroup reduces a group outcome to one line: a glyph, a status
// word, and where to look next.
func summarizeGroup(g orchestrator.GroupReport) (glyph, status, detail string) {
	switch {
	case g.Phase == orchestrator.GroupFailed:
		return "✗", "failed", util.TruncateString(util.FirstLine(g.Error), 60)
	case g.Publish == pipeline.StatePublished:
		return "✓", "published", g.PullRequest
	default:
		return "→", "local only", "branch " + g.Branch
	}
}
