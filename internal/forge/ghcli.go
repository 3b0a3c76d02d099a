package forge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/errors"
)

// GHCLI creates pull requests through the GitHub CLI. The gh binary resolves
// the target repository from the directory it runs in, so no token or remote
// parsing is needed here.
type GHCLI struct {
	executor CommandExecutor
}

// NewGHCLI creates a GHCLI forge using the default command executor.
func NewGHCLI() *GHCLI {
	return &GHCLI{executor: defaultExecutor}
}

// NewGHCLIWithExecutor creates a GHCLI forge with a custom command executor
// for testing.
func NewGHCLIWithExecutor(executor CommandExecutor) *GHCLI {
	return &GHCLI{executor: executor}
}

// Name returns "gh".
func (g *GHCLI) Name() string { return "gh" }

// Verify checks that gh is installed and authenticated.
func (g *GHCLI) Verify(ctx context.Context) error {
	output, err := g.executor(ctx, "", "gh", "auth", "status")
	if err != nil {
		return classifyGHError(err, output)
	}
	return nil
}

// CreatePullRequest opens a pull request with gh pr create, running in dir so
// gh picks up the right repository, and returns the pull request URL.
func (g *GHCLI) CreatePullRequest(ctx context.Context, dir string, d Draft) (string, error) {
	args := []string{"pr", "create",
		"--title", d.Title,
		"--body", d.Body,
		"--head", d.Head,
		"--base", d.Base,
	}

	if d.Draft {
		args = append(args, "--draft")
	}

	for _, label := range d.Labels {
		args = append(args, "--label", label)
	}

	for _, reviewer := range d.Reviewers {
		args = append(args, "--reviewer", reviewer)
	}

	output, err := g.executor(ctx, dir, "gh", args...)
	if err != nil {
		return "", classifyGHError(err, output)
	}

	return pullRequestURL(string(output)), nil
}

// classifyGHError analyzes the error and output from a gh command and returns
// a more specific error when possible. Errors are wrapped to preserve context
// while enabling errors.Is() checks.
func classifyGHError(err error, output []byte) error {
	// "executable file not found" means gh is not installed.
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%w: %v", errors.ErrForgeNotInstalled, execErr)
	}

	outStr := strings.ToLower(string(output))
	switch {
	case strings.Contains(outStr, "not logged in") ||
		strings.Contains(outStr, "authentication required") ||
		strings.Contains(outStr, "gh auth login"):
		return fmt.Errorf("%w: %s", errors.ErrForgeAuthRequired, strings.TrimSpace(string(output)))

	case strings.Contains(outStr, "no commits between"):
		return fmt.Errorf("%w: %s", errors.ErrForgeNoCommits, strings.TrimSpace(string(output)))
	}

	return fmt.Errorf("gh command failed: %w\n%s", err, string(output))
}

// pullRequestURL extracts the pull request URL from gh output. gh prints
// progress lines to stderr and the URL to stdout; combined output interleaves
// them, so scan for the last URL-shaped line.
func pullRequestURL(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "https://") || strings.HasPrefix(line, "http://") {
			return line
		}
	}
	return strings.TrimSpace(output)
}

// Ensure GHCLI implements Forge
var _ Forge = (*GHCLI)(nil)
