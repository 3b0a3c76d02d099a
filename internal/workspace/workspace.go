// Package workspace manages isolated working copies. Each task group gets
// one git worktree bound to one freshly created branch; the manager owns
// their whole lifecycle including the reference pruning git needs after a
// worktree disappears.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
)

// Workspace is an isolated working copy bound to one branch.
type Workspace struct {
	// Path is the worktree directory.
	Path string

	// Branch is the branch checked out in this workspace.
	Branch string

	// BaseBranch is the branch this workspace's branch started from.
	BaseBranch string

	// RepoDir is the backing repository's root.
	RepoDir string
}

// Manager creates and destroys workspaces for one repository.
type Manager struct {
	repoDir string
	dir     string
	exec    Executor
	logger  *logging.Logger
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git, which can be a
// directory for a normal checkout or a file for a worktree.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s: %w", startDir, errors.ErrNotGitRepository)
		}
		dir = parent
	}
}

// NewManager creates a Manager for the repository at repoDir, placing
// workspaces under dir.
func NewManager(repoDir, dir string, logger *logging.Logger) (*Manager, error) {
	root, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repoDir: root,
		dir:     dir,
		exec:    NewCLIExecutor(),
		logger:  logger,
	}, nil
}

// RepoDir returns the resolved repository root.
func (m *Manager) RepoDir() string { return m.repoDir }

// Dir returns the directory workspaces are created under.
func (m *Manager) Dir() string { return m.dir }

// Create makes a workspace for branch, started from baseBranch. Callers
// generate unique branch names before invoking this. If a workspace already
// occupies the target path it is removed first, and a branch left behind by
// that superseded workspace is reset to baseBranch, so re-running after a
// crash converges on exactly one live workspace. A branch checked out in
// another workspace fails loudly rather than being silently taken over.
func (m *Manager) Create(ctx context.Context, branch, baseBranch string) (*Workspace, error) {
	path := filepath.Join(m.dir, PathSegment(branch))

	if _, err := os.Stat(path); err == nil {
		m.logger.Warn("workspace path already exists, removing before create", "path", path)
		stale := &Workspace{Path: path, RepoDir: m.repoDir}
		if err := m.Remove(ctx, stale); err != nil {
			return nil, errors.NewGitError("failed to clear stale workspace", err).
				WithWorkspace(path).
				WithRepository(m.repoDir)
		}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.NewGitError("failed to create workspace directory", err).
			WithRepository(m.repoDir)
	}

	output, err := m.exec.Run(ctx, m.repoDir, "git", "worktree", "add", "-B", branch, path, baseBranch)
	if err != nil {
		cause := classifyWorktreeAddError(string(output), err)
		return nil, errors.NewGitError("failed to create workspace", cause).
			WithBranch(branch).
			WithWorkspace(path).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}

	return &Workspace{
		Path:       path,
		Branch:     branch,
		BaseBranch: baseBranch,
		RepoDir:    m.repoDir,
	}, nil
}

// Remove destroys a workspace. It first asks git for a clean removal and
// falls back to deleting the directory when that fails. Worktree references
// are pruned in both outcomes: a "successful" removal can still leave stale
// bookkeeping behind, and skipping the prune is how repositories end up
// refusing future worktree adds. The workspace's branch is left alone.
func (m *Manager) Remove(ctx context.Context, ws *Workspace) error {
	output, err := m.exec.Run(ctx, m.repoDir, "git", "worktree", "remove", "--force", ws.Path)
	if err != nil {
		m.logger.Warn("clean workspace removal failed, deleting directory",
			"path", ws.Path, "error", err.Error())
		if rmErr := os.RemoveAll(ws.Path); rmErr != nil {
			m.prune(ctx)
			return errors.NewGitError("failed to remove workspace", rmErr).
				WithBranch(ws.Branch).
				WithWorkspace(ws.Path).
				WithRepository(m.repoDir).
				WithGitOutput(string(output))
		}
	}

	m.prune(ctx)
	return nil
}

// prune drops stale worktree references. Failures are logged, never fatal.
func (m *Manager) prune(ctx context.Context) {
	if output, err := m.exec.Run(ctx, m.repoDir, "git", "worktree", "prune"); err != nil {
		m.logger.Warn("worktree prune failed",
			"repo", m.repoDir, "error", err.Error(), "output", strings.TrimSpace(string(output)))
	}
}

// List returns the paths of all worktrees attached to the repository,
// including the main checkout.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	output, err := m.exec.Run(ctx, m.repoDir, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.NewGitError("failed to list worktrees", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}

	var worktrees []string
	for _, line := range strings.Split(string(output), "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			worktrees = append(worktrees, path)
		}
	}
	return worktrees, nil
}

// ListManaged returns only the worktrees that live under the manager's
// workspace directory.
func (m *Manager) ListManaged(ctx context.Context) ([]string, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	prefix := m.dir + string(filepath.Separator)
	var managed []string
	for _, path := range all {
		if strings.HasPrefix(path, prefix) {
			managed = append(managed, path)
		}
	}
	return managed, nil
}

// CleanupReport summarizes what BulkCleanup removed.
type CleanupReport struct {
	Workspaces []string
	StaleDirs  []string
	Branches   []string
}

// BulkCleanup sweeps every workspace under the manager's directory: removes
// registered worktrees, deletes leftover directories no longer known to git,
// and prunes references. With deleteBranches set it also deletes local
// branches under branchPrefix that are no longer checked out anywhere. It is
// the recovery path after an interrupted run, so it keeps going past
// individual failures and reports what it managed to clean.
func (m *Manager) BulkCleanup(ctx context.Context, branchPrefix string, deleteBranches bool) (*CleanupReport, error) {
	report := &CleanupReport{}

	managed, err := m.ListManaged(ctx)
	if err != nil {
		return report, err
	}
	for _, path := range managed {
		if branchPrefix != "" && !strings.HasPrefix(filepath.Base(path), branchPrefix+"-") {
			continue
		}
		ws := &Workspace{Path: path, RepoDir: m.repoDir}
		if err := m.Remove(ctx, ws); err != nil {
			m.logger.Warn("bulk cleanup could not remove workspace", "path", path, "error", err.Error())
			continue
		}
		report.Workspaces = append(report.Workspaces, path)
	}

	// Directories left behind by crashes are no longer registered worktrees,
	// so the sweep above misses them. Only names carrying our branch prefix
	// are touched: the workspace directory may be shared with other tools.
	if branchPrefix != "" {
		if entries, err := os.ReadDir(m.dir); err == nil {
			for _, entry := range entries {
				if !strings.HasPrefix(entry.Name(), branchPrefix+"-") {
					continue
				}
				path := filepath.Join(m.dir, entry.Name())
				if err := os.RemoveAll(path); err != nil {
					m.logger.Warn("bulk cleanup could not delete stale directory", "path", path, "error", err.Error())
					continue
				}
				report.StaleDirs = append(report.StaleDirs, path)
			}
		}
	}

	m.prune(ctx)

	if deleteBranches && branchPrefix != "" {
		report.Branches = m.deleteBranches(ctx, branchPrefix)
	}

	return report, nil
}

// deleteBranches removes local branches under prefix/. Checked-out branches
// are skipped; git refuses to delete those and that is the right call.
func (m *Manager) deleteBranches(ctx context.Context, prefix string) []string {
	output, err := m.exec.Run(ctx, m.repoDir, "git", "for-each-ref",
		"--format=%(refname:short)", "refs/heads/"+prefix+"/")
	if err != nil {
		m.logger.Warn("could not list branches for cleanup", "prefix", prefix, "error", err.Error())
		return nil
	}

	var deleted []string
	for _, branch := range strings.Fields(string(output)) {
		if out, err := m.exec.Run(ctx, m.repoDir, "git", "branch", "-D", branch); err != nil {
			m.logger.Warn("could not delete branch",
				"branch", branch, "error", err.Error(), "output", strings.TrimSpace(string(out)))
			continue
		}
		deleted = append(deleted, branch)
	}
	return deleted
}

// classifyWorktreeAddError maps git's failure text onto sentinel errors so
// callers can tell a name collision from everything else.
func classifyWorktreeAddError(output string, err error) error {
	switch {
	case strings.Contains(output, "already checked out"):
		return errors.ErrBranchCheckedOut
	case strings.Contains(output, "already exists"):
		return errors.ErrBranchExists
	default:
		return err
	}
}
