package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/forge"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/repo"
	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

// State is the terminal publish outcome for one task group.
type State string

const (
	// StateLocalOnly means the commits stay local: the repository has no
	// remote, publishing is disabled, or the branch carries no commits.
	StateLocalOnly State = "local_only"

	// StatePushFailed means the push was rejected; nothing reached the
	// remote. Recovery is retrying the push.
	StatePushFailed State = "push_failed"

	// StatePublishPartial means the branch was pushed but pull request
	// creation failed. Recovery is retrying only the pull request.
	StatePublishPartial State = "publish_partial"

	// StatePublished means the branch is pushed and its pull request is open.
	StatePublished State = "published"
)

// PublishResult reports where a task group's publish ended up.
type PublishResult struct {
	State State

	// URL is the pull request URL, set only in StatePublished.
	URL string
}

// Publisher pushes task group branches and opens their pull requests.
type Publisher struct {
	forge  forge.Forge
	cfg    config.PublishConfig
	exec   workspace.Executor
	sleep  func(time.Duration)
	logger *logging.Logger
}

// NewPublisher creates a Publisher using f to open pull requests.
func NewPublisher(f forge.Forge, cfg config.PublishConfig, logger *logging.Logger) *Publisher {
	return NewPublisherWithExecutor(f, cfg, workspace.NewCLIExecutor(), logger)
}

// NewPublisherWithExecutor creates a Publisher with a custom git executor for
// testing.
func NewPublisherWithExecutor(f forge.Forge, cfg config.PublishConfig, exec workspace.Executor, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Publisher{
		forge:  f,
		cfg:    cfg,
		exec:   exec,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Publish walks the publish state machine for one task group:
//
//	no remote            -> StateLocalOnly
//	publishing disabled  -> StateLocalOnly
//	no commits on branch -> StateLocalOnly
//	push rejected        -> StatePushFailed, error
//	pull request failed  -> StatePublishPartial, error (branch stays pushed)
//	pull request open    -> StatePublished
//
// The branch is never deleted on any failure path; recovery instructions
// belong to the caller's cleanup policy.
func (p *Publisher) Publish(ctx context.Context, ws *workspace.Workspace, group task.Group) (*PublishResult, error) {
	r, err := repo.Open(ws.RepoDir)
	if err != nil {
		return nil, err
	}
	if !r.HasRemote() {
		p.logger.Info("no remote configured, changes remain committed locally", "branch", ws.Branch)
		return &PublishResult{State: StateLocalOnly}, nil
	}

	if !p.cfg.Enabled {
		p.logger.Info("publishing disabled, changes remain committed locally", "branch", ws.Branch)
		return &PublishResult{State: StateLocalOnly}, nil
	}

	commits, err := p.commitCount(ctx, ws)
	if err == nil && commits == 0 {
		p.logger.Info("branch has no commits beyond base, nothing to publish",
			"branch", ws.Branch, "base", ws.BaseBranch)
		return &PublishResult{State: StateLocalOnly}, nil
	}

	output, err := p.exec.Run(ctx, ws.Path, "git", "push", "-u", "origin", ws.Branch)
	if err != nil {
		message := "failed to push branch"
		if text := strings.TrimSpace(string(output)); text != "" {
			message = fmt.Sprintf("%s: %s", message, text)
		}
		return &PublishResult{State: StatePushFailed},
			errors.NewPublishError(message, errors.ErrPushFailed).
				WithBranch(ws.Branch).
				WithRemote(r.RemoteURL()).
				WithStage(errors.StagePush)
	}
	p.logger.Info("pushed branch", "branch", ws.Branch)

	// Give the remote a moment to index the new branch before asking it to
	// open a pull request against it.
	if settle := p.cfg.Settle(); settle > 0 {
		p.logger.Debug("waiting for remote to settle", "interval", settle.String())
		p.sleep(settle)
	}

	draft := p.draft(ctx, ws, group)
	url, err := p.forge.CreatePullRequest(ctx, ws.Path, draft)
	if err != nil {
		// Join keeps both the taxonomy sentinel and the forge's own
		// classification reachable through errors.Is.
		return &PublishResult{State: StatePublishPartial},
			errors.NewPublishError("pull request creation failed, branch stays pushed",
				errors.Join(errors.ErrPublishPartial, err)).
				WithBranch(ws.Branch).
				WithStage(errors.StagePullRequest)
	}

	p.logger.Info("opened pull request", "branch", ws.Branch, "url", url)
	return &PublishResult{State: StatePublished, URL: url}, nil
}

// commitCount counts commits on the workspace branch beyond its base.
func (p *Publisher) commitCount(ctx context.Context, ws *workspace.Workspace) (int, error) {
	output, err := p.exec.Run(ctx, ws.Path, "git", "rev-list", "--count", ws.BaseBranch+"..HEAD")
	if err != nil {
		return 0, fmt.Errorf("count commits beyond %s: %w", ws.BaseBranch, err)
	}
	return strconv.Atoi(strings.TrimSpace(string(output)))
}

// draft assembles the pull request for a task group.
func (p *Publisher) draft(ctx context.Context, ws *workspace.Workspace, group task.Group) forge.Draft {
	return forge.Draft{
		Title:     group.Lead.Title,
		Body:      BuildBody(group),
		Head:      ws.Branch,
		Base:      ws.BaseBranch,
		Draft:     p.cfg.Draft,
		Labels:    p.cfg.Labels,
		Reviewers: p.reviewers(ctx, ws),
	}
}

// reviewers merges the configured defaults with by-path rules matched against
// the files this branch touches.
func (p *Publisher) reviewers(ctx context.Context, ws *workspace.Workspace) []string {
	var changed []string
	output, err := p.exec.Run(ctx, ws.Path, "git", "diff", "--name-only", ws.BaseBranch+"...HEAD")
	if err != nil {
		p.logger.Debug("could not list changed files for reviewer rules", "error", err.Error())
	} else if text := strings.TrimSpace(string(output)); text != "" {
		changed = strings.Split(text, "\n")
	}
	return ResolveReviewers(changed, p.cfg.Reviewers.Default, p.cfg.Reviewers.ByPath)
}

// BuildBody renders the pull request body for a task group: the tasks it
// implements, a review checklist, and a footer naming the tool.
func BuildBody(group task.Group) string {
	var b strings.Builder

	b.WriteString("Implements the following tasks from the overnight checklist:\n\n")
	for _, title := range group.Titles() {
		fmt.Fprintf(&b, "- %s\n", title)
	}

	b.WriteString("\n## Review checklist\n\n")
	b.WriteString("- [ ] Changes match the task descriptions\n")
	b.WriteString("- [ ] Code follows the existing conventions\n")
	b.WriteString("- [ ] Tests cover the new behavior\n")
	b.WriteString("- [ ] No unrelated files are included\n")

	b.WriteString("\n---\n")
	b.WriteString("Opened automatically by nightshift.\n")

	return b.String()
}

// ResolveReviewers determines reviewers from the default list and by-path
// glob rules matched against changed files. Handles are deduplicated, the @
// prefix is dropped, and the result is sorted for stable output.
func ResolveReviewers(changedFiles, defaults []string, byPath map[string][]string) []string {
	reviewerSet := make(map[string]struct{})

	for _, r := range defaults {
		reviewerSet[normalizeReviewer(r)] = struct{}{}
	}

	for pattern, reviewers := range byPath {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		for _, file := range changedFiles {
			if g.Match(file) {
				for _, r := range reviewers {
					reviewerSet[normalizeReviewer(r)] = struct{}{}
				}
				break
			}
		}
	}

	result := make([]string, 0, len(reviewerSet))
	for r := range reviewerSet {
		result = append(result, r)
	}
	sort.Strings(result)
	return result
}

// normalizeReviewer removes the @ prefix from reviewer handles.
func normalizeReviewer(reviewer string) string {
	return strings.TrimPrefix(reviewer, "@")
}
