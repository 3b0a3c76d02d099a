package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/orchestrator"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

// staleWorkspace is a leftover nightshift worktree in the current repository.
type staleWorkspace struct {
	Path           string
	Branch         string
	HasUncommitted bool
	OnRemote       bool
}

// staleResources holds everything the sweep found.
type staleResources struct {
	Workspaces []staleWorkspace

	// Branches are <prefix>/* branches with no worktree and no remote
	// counterpart.
	Branches []string
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale nightshift workspaces and branches",
	Long: `Cleanup sweeps the current repository for leftovers of earlier runs:

- Workspaces: worktrees under the configured workspace directory
- Branches: <prefix>/* branches with no worktree that were never pushed
  (prefix is configured via branch.prefix, default: "nightshift")

Workspaces with uncommitted changes and branches that exist on the remote
are kept unless --force is given; a pushed branch may still have an open
pull request.

Use --dry-run to see what would be removed without making changes.`,
	RunE: runCleanup,
}

var (
	cleanupDryRun  bool
	cleanupForce   bool
	cleanupReports time.Duration
)

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be removed without making changes")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip confirmation and remove workspaces with uncommitted changes")
	cleanupCmd.Flags().DurationVar(&cleanupReports, "prune-reports", 0, "also remove run reports older than this age (e.g. 720h)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := workspace.FindGitRoot(cwd)
	if err != nil {
		return err
	}

	mgr, err := workspace.NewManager(root, cfg.Workspace.ResolveDir(root), logging.NopLogger())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stale, err := discoverStale(ctx, mgr, root, cfg.Branch.Prefix)
	if err != nil {
		return err
	}

	if len(stale.Workspaces) == 0 && len(stale.Branches) == 0 && cleanupReports == 0 {
		fmt.Println("No stale resources found. Nothing to clean up.")
		return nil
	}

	printCleanupSummary(stale)

	if cleanupDryRun {
		fmt.Println("\nDry run mode - no changes made.")
		return nil
	}

	if !cleanupForce {
		fmt.Print("\nProceed with cleanup? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	return performCleanup(ctx, mgr, root, stale)
}

func discoverStale(ctx context.Context, mgr *workspace.Manager, root, prefix string) (*staleResources, error) {
	stale := &staleResources{}
	exec := workspace.NewCLIExecutor()

	managed, err := mgr.ListManaged(ctx)
	if err != nil {
		return nil, err
	}

	checkedOut := make(map[string]bool)
	for _, path := range managed {
		if !strings.HasPrefix(filepath.Base(path), prefix+"-") {
			continue
		}

		sw := staleWorkspace{Path: path}
		if out, err := exec.Run(ctx, path, "git", "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
			sw.Branch = strings.TrimSpace(string(out))
			checkedOut[sw.Branch] = true
		}
		if out, err := exec.Run(ctx, path, "git", "status", "--porcelain"); err == nil {
			sw.HasUncommitted = len(strings.TrimSpace(string(out))) > 0
		}
		if sw.Branch != "" {
			if out, err := exec.Run(ctx, root, "git", "ls-remote", "--heads", "origin", sw.Branch); err == nil {
				sw.OnRemote = len(strings.TrimSpace(string(out))) > 0
			}
		}
		stale.Workspaces = append(stale.Workspaces, sw)
	}

	// Branches whose worktree is already gone.
	out, err := exec.Run(ctx, root, "git", "for-each-ref", "--format=%(refname:short)", "refs/heads/"+prefix+"/")
	if err != nil {
		return stale, nil
	}
	for _, branch := range strings.Fields(string(out)) {
		if checkedOut[branch] {
			continue
		}
		// A branch on the remote may have an open pull request; keep it.
		if remote, err := exec.Run(ctx, root, "git", "ls-remote", "--heads", "origin", branch); err == nil &&
			len(strings.TrimSpace(string(remote))) > 0 {
			continue
		}
		stale.Branches = append(stale.Branches, branch)
	}

	return stale, nil
}

func printCleanupSummary(stale *staleResources) {
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println("Stale Resources Found")
	fmt.Println(strings.Repeat("─", 60))

	if len(stale.Workspaces) > 0 {
		fmt.Printf("\nWorkspaces (%d):\n", len(stale.Workspaces))
		for _, sw := range stale.Workspaces {
			status := ""
			if sw.HasUncommitted {
				status = " [uncommitted changes]"
			}
			if sw.OnRemote {
				status += " [pushed to remote]"
			}
			fmt.Printf("  - %s%s\n", filepath.Base(sw.Path), status)
			if sw.Branch != "" {
				fmt.Printf("    Branch: %s\n", sw.Branch)
			}
		}
	}

	if len(stale.Branches) > 0 {
		fmt.Printf("\nBranches (%d):\n", len(stale.Branches))
		for _, branch := range stale.Branches {
			fmt.Printf("  - %s\n", branch)
		}
	}

	if cleanupReports > 0 {
		fmt.Printf("\nRun reports older than %s will be pruned.\n", cleanupReports)
	}
}

func performCleanup(ctx context.Context, mgr *workspace.Manager, root string, stale *staleResources) error {
	fmt.Println()
	exec := workspace.NewCLIExecutor()

	var totalRemoved int
	deletedBranches := make(map[string]bool)

	for _, sw := range stale.Workspaces {
		// Safety: never drop unreviewed work without --force.
		if sw.HasUncommitted && !cleanupForce {
			fmt.Printf("Skipping %s (has uncommitted changes, use --force to remove)\n", filepath.Base(sw.Path))
			continue
		}

		ws := &workspace.Workspace{Path: sw.Path, Branch: sw.Branch, RepoDir: root}
		if err := mgr.Remove(ctx, ws); err != nil {
			fmt.Printf("Warning: failed to remove workspace %s: %v\n", filepath.Base(sw.Path), err)
			continue
		}
		fmt.Printf("Removed workspace: %s\n", filepath.Base(sw.Path))
		totalRemoved++

		if sw.Branch != "" && !sw.OnRemote {
			if out, err := exec.Run(ctx, root, "git", "branch", "-D", sw.Branch); err != nil {
				fmt.Printf("Warning: failed to delete branch %s: %v (%s)\n", sw.Branch, err, strings.TrimSpace(string(out)))
				continue
			}
			fmt.Printf("Deleted branch: %s\n", sw.Branch)
			deletedBranches[sw.Branch] = true
		}
	}

	for _, branch := range stale.Branches {
		if deletedBranches[branch] {
			continue
		}
		if out, err := exec.Run(ctx, root, "git", "branch", "-D", branch); err != nil {
			fmt.Printf("Warning: failed to delete branch %s: %v (%s)\n", branch, err, strings.TrimSpace(string(out)))
			continue
		}
		fmt.Printf("Deleted branch: %s\n", branch)
		totalRemoved++
	}

	if cleanupReports > 0 {
		pruned, err := orchestrator.PruneReports(root, cleanupReports)
		if err != nil {
			fmt.Printf("Warning: failed to prune run reports: %v\n", err)
		} else if pruned > 0 {
			fmt.Printf("Pruned %d run report(s).\n", pruned)
			totalRemoved += pruned
		}
	}

	fmt.Printf("\nCleanup complete. Removed %d resources.\n", totalRemoved)
	return nil
}
