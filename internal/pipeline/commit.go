// Package pipeline turns an implemented workspace into a commit and a pull
// request. Committer stages whatever the backend left in the working tree and
// commits it; Publisher pushes the branch and opens the pull request, walking
// an explicit state machine per task group.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/assist"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/util"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

// maxSubjectLen caps commit subjects at the conventional 72 columns.
const maxSubjectLen = 72

// messagePrompt asks the assistant for a commit subject. The reply is
// sanitized to one line, so a chatty response degrades into its first line
// rather than into a broken commit.
const messagePrompt = `Write a conventional-commit subject line for the change below.

Task: %s

Staged diff summary:
%s

Rules:
- One line only, at most 72 characters.
- Lowercase type prefix such as "feat:", "fix:", "refactor:".
- No quotes, no trailing period, no body.`

// CommitResult reports what the commit step did.
type CommitResult struct {
	// Committed is false when staging found nothing to commit. That is a
	// success: a no-op task legitimately produces no change.
	Committed bool

	// Message is the commit message used; empty when nothing was committed.
	Message string
}

// Committer stages and commits everything a backend left in a workspace.
// Commit messages come from the assist client when it is around, with a
// deterministic fallback built from the task title.
type Committer struct {
	assist assist.Client
	exec   workspace.Executor
	logger *logging.Logger
}

// NewCommitter creates a Committer. A nil client disables assisted commit
// messages; the fallback is always used.
func NewCommitter(client assist.Client, logger *logging.Logger) *Committer {
	return NewCommitterWithExecutor(client, workspace.NewCLIExecutor(), logger)
}

// NewCommitterWithExecutor creates a Committer with a custom git executor for
// testing.
func NewCommitterWithExecutor(client assist.Client, exec workspace.Executor, logger *logging.Logger) *Committer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Committer{assist: client, exec: exec, logger: logger}
}

// Commit stages all changes in the workspace and commits them under a
// subject derived from t, the task that produced them. An empty staged diff
// returns success without a commit. Any git failure aborts the task group via
// ErrCommitFailed.
func (c *Committer) Commit(ctx context.Context, ws *workspace.Workspace, t task.Task) (*CommitResult, error) {
	output, err := c.exec.Run(ctx, ws.Path, "git", "add", "-A")
	if err != nil {
		return nil, errors.NewGitError("failed to stage changes", errors.ErrCommitFailed).
			WithRepository(ws.Path).
			WithBranch(ws.Branch).
			WithGitOutput(string(output))
	}

	// Exit 0 means the staged diff is empty. Non-zero falls through to the
	// commit, which surfaces real failures itself.
	if err := c.exec.RunQuiet(ctx, ws.Path, "git", "diff", "--cached", "--quiet"); err == nil {
		c.logger.Info("nothing to commit", "branch", ws.Branch)
		return &CommitResult{}, nil
	}

	message := c.message(ctx, ws, t)
	output, err = c.exec.Run(ctx, ws.Path, "git", "commit", "-m", message)
	if err != nil {
		return nil, errors.NewGitError("failed to commit changes", errors.ErrCommitFailed).
			WithRepository(ws.Path).
			WithBranch(ws.Branch).
			WithGitOutput(string(output))
	}

	c.logger.Info("committed changes", "branch", ws.Branch, "message", message)
	return &CommitResult{Committed: true, Message: message}, nil
}

// message builds the commit subject. The assist client gets the first shot;
// the deterministic fallback is total.
func (c *Committer) message(ctx context.Context, ws *workspace.Workspace, t task.Task) string {
	fallback := FallbackMessage(t.Title)

	if c.assist == nil || !c.assist.Available() {
		return fallback
	}

	// The diff stat is advisory context; losing it is not worth failing over.
	stat, err := c.exec.Run(ctx, ws.Path, "git", "diff", "--cached", "--stat")
	if err != nil {
		stat = nil
	}

	reply, err := c.assist.Complete(ctx, fmt.Sprintf(messagePrompt, t.Title, strings.TrimSpace(string(stat))))
	if err != nil {
		c.logger.Warn("assisted commit message unavailable, using fallback",
			"branch", ws.Branch, "error", err.Error())
		return fallback
	}

	subject := sanitizeSubject(reply)
	if subject == "" {
		c.logger.Warn("assisted commit message unusable, using fallback", "branch", ws.Branch)
		return fallback
	}
	return subject
}

// FallbackMessage is the deterministic commit subject used when no assistant
// reply is usable.
func FallbackMessage(title string) string {
	return "feat: " + strings.ToLower(title)
}

// sanitizeSubject reduces an assistant reply to a single commit subject line:
// fences stripped, first line only, surrounding quotes dropped, length capped.
func sanitizeSubject(reply string) string {
	line := util.FirstLine(assist.StripFences(reply))
	line = strings.Trim(line, `"'`)
	line = strings.TrimSpace(line)
	if len(line) > maxSubjectLen {
		line = strings.TrimSpace(util.TruncateString(line, maxSubjectLen))
	}
	return line
}
