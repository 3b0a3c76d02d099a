// Package orchestrator drives the nightly run. For every manifest target it
// parses the task checklist, walks each task group through an explicit phase
// machine (workspace, implement, commit, publish), and records the outcomes
// in a per-repository run report. Processing is single-threaded on purpose:
// one group's failure never touches its siblings, and only a missing required
// backend aborts the run.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightshift-labs/nightshift/internal/assist"
	"github.com/nightshift-labs/nightshift/internal/backend"
	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/filelock"
	"github.com/nightshift-labs/nightshift/internal/forge"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/manifest"
	"github.com/nightshift-labs/nightshift/internal/pipeline"
	"github.com/nightshift-labs/nightshift/internal/repo"
	"github.com/nightshift-labs/nightshift/internal/specfile"
	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

// implementer is the backend dispatcher seam.
type implementer interface {
	Name() string
	Verify() error
	Implement(ctx context.Context, dir string, t task.Task, spec specfile.Content) (*backend.Result, error)
}

// committer is the commit pipeline seam.
type committer interface {
	Commit(ctx context.Context, ws *workspace.Workspace, t task.Task) (*pipeline.CommitResult, error)
}

// publisher is the publish pipeline seam.
type publisher interface {
	Publish(ctx context.Context, ws *workspace.Workspace, group task.Group) (*pipeline.PublishResult, error)
}

// workspaces is the per-repository workspace manager seam.
type workspaces interface {
	Create(ctx context.Context, branch, baseBranch string) (*workspace.Workspace, error)
	Remove(ctx context.Context, ws *workspace.Workspace) error
}

// checklistParser is the task parsing seam.
type checklistParser interface {
	Parse(ctx context.Context, doc string) []task.Task
}

// Orchestrator owns the run loop and its error policy.
type Orchestrator struct {
	cfg       *config.Config
	backend   implementer
	forge     forge.Forge
	parser    checklistParser
	committer committer
	publisher publisher
	naming    *workspace.NamingStrategy

	newManager func(repoDir string, logger *logging.Logger) (workspaces, error)
	newRunID   func() string
	now        func() time.Time
	logger     *logging.Logger
}

// New wires an Orchestrator from configuration. Construction fails on an
// unknown backend kind or an unusable forge, so a misconfigured run aborts
// before any repository is touched.
func New(cfg *config.Config, logger *logging.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	dispatcher, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}

	// The forge is only constructed when publishing is on; a disabled
	// publish step never touches it, and the api forge's token requirement
	// should not block local-only runs.
	var f forge.Forge
	if cfg.Publish.Enabled {
		f, err = forge.New(cfg.Publish, logger)
		if err != nil {
			return nil, err
		}
	}

	client := assist.New(cfg.Assist)

	return &Orchestrator{
		cfg:       cfg,
		backend:   dispatcher,
		forge:     f,
		parser:    task.NewParser(client, logger),
		committer: pipeline.NewCommitter(client, logger),
		publisher: pipeline.NewPublisher(f, cfg.Publish, logger),
		naming:    workspace.NewNamingStrategy(cfg.Branch.Prefix),
		newManager: func(repoDir string, logger *logging.Logger) (workspaces, error) {
			return workspace.NewManager(repoDir, cfg.Workspace.ResolveDir(repoDir), logger)
		},
		newRunID: NewRunID,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Run processes targets in manifest order and saves a report under each
// repository as it finishes. The returned error is non-nil only for
// conditions that abort the whole run; per-group failures live in the
// reports and the log.
func (o *Orchestrator) Run(ctx context.Context, targets []manifest.Target) ([]*RunReport, error) {
	runID := o.newRunID()
	logger := o.logger.WithRun(runID)
	logger.Info("starting run", "backend", o.backend.Name(), "repositories", len(targets))

	if err := o.backend.Verify(); err != nil {
		return nil, err
	}

	// Verify the forge before creating any branch: a broken gh login at
	// 2am should fail the run while there is still nothing to recover.
	if o.cfg.Publish.Enabled && o.forge != nil {
		if err := o.forge.Verify(ctx); err != nil {
			return nil, fmt.Errorf("forge %q failed verification, publishing would fail for every group: %w",
				o.forge.Name(), err)
		}
	}

	var reports []*RunReport
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			logger.Warn("run canceled", "remaining_repositories", len(targets)-i)
			return reports, err
		}

		report, err := o.processRepo(ctx, target, runID, logger)
		reports = append(reports, report)
		if saveErr := report.Save(); saveErr != nil {
			logger.Warn("could not save run report", "repo", report.Repo, "error", saveErr.Error())
		}
		if err != nil {
			if remaining := len(targets) - i - 1; remaining > 0 {
				logger.Error("aborting run, remaining repositories skipped",
					"skipped", remaining, "error", err.Error())
			}
			return reports, err
		}
	}

	var published, localOnly, failed int
	for _, r := range reports {
		p, l, f := r.Tally()
		published += p
		localOnly += l
		failed += f
	}
	logger.Info("run finished", "published", published, "local_only", localOnly, "failed", failed)
	return reports, nil
}

// processRepo handles one manifest target. The returned error is non-nil only
// when the run must abort; everything else is recorded in the report.
func (o *Orchestrator) processRepo(ctx context.Context, target manifest.Target, runID string, logger *logging.Logger) (*RunReport, error) {
	logger = logger.WithRepo(target.Path)
	report := &RunReport{
		ID:        runID,
		Repo:      target.Path,
		TasksFile: target.TasksFile,
		Backend:   o.backend.Name(),
		StartedAt: o.now(),
	}
	defer func() { report.FinishedAt = o.now() }()

	root, err := workspace.FindGitRoot(target.Path)
	if err != nil {
		report.Error = err.Error()
		logger.Error("skipping repository", "error", err.Error())
		return report, nil
	}
	report.Repo = root

	doc, err := os.ReadFile(filepath.Join(root, target.TasksFile))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no task checklist, skipping repository", "file", target.TasksFile)
			return report, nil
		}
		report.Error = err.Error()
		logger.Error("cannot read task checklist", "file", target.TasksFile, "error", err.Error())
		return report, nil
	}

	tasks := o.parser.Parse(ctx, string(doc))
	if len(tasks) == 0 {
		logger.Info("no unchecked tasks", "file", target.TasksFile)
		return report, nil
	}
	groups := task.GroupTasks(tasks)
	logger.Info("parsed checklist", "file", target.TasksFile, "tasks", len(tasks), "groups", len(groups))

	// Cron restarts overlap when a run outlasts its interval; two runs
	// mutating one repository's worktrees would corrupt both.
	lock, err := filelock.Acquire(LockPath(root))
	if err != nil {
		report.Error = err.Error()
		logger.Error("cannot lock repository, skipping", "error", err.Error())
		return report, nil
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("run lock release failed", "error", err.Error())
		}
	}()

	base, err := o.baseBranch(target, root)
	if err != nil {
		report.Error = err.Error()
		logger.Error("skipping repository", "error", err.Error())
		return report, nil
	}

	mgr, err := o.newManager(root, logger)
	if err != nil {
		report.Error = err.Error()
		logger.Error("workspace manager unavailable, skipping repository", "error", err.Error())
		return report, nil
	}
	loader := specfile.NewLoader(root)

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return report, err
		}

		gr, err := o.processGroup(ctx, mgr, loader, group, base, logger)
		report.Groups = append(report.Groups, gr)
		if err != nil {
			report.Error = err.Error()
			if remaining := len(groups) - i - 1; remaining > 0 {
				logger.Error("aborting repository, remaining groups skipped", "skipped", remaining)
			}
			return report, err
		}
	}
	return report, nil
}

// baseBranch resolves the branch new workspaces start from: the manifest
// override when present, otherwise the repository's current HEAD branch.
func (o *Orchestrator) baseBranch(target manifest.Target, root string) (string, error) {
	if target.BaseBranch != "" {
		return target.BaseBranch, nil
	}
	r, err := repo.Open(root)
	if err != nil {
		return "", fmt.Errorf("cannot determine base branch: %w", err)
	}
	branch, err := r.HeadBranch()
	if err != nil {
		return "", fmt.Errorf("cannot determine base branch: %w", err)
	}
	return branch, nil
}

// processGroup walks one task group through the phase machine. Failures stay
// local to the group; only an error satisfying errors.AbortsRun is returned.
// Workspace retention runs from a defer so it is reached on every path out.
func (o *Orchestrator) processGroup(ctx context.Context, mgr workspaces, loader *specfile.Loader, group task.Group, baseBranch string, logger *logging.Logger) (gr GroupReport, abortErr error) {
	machine := NewMachine()
	gr = GroupReport{Lead: group.Lead.Title}
	logger = logger.WithTask(group.Lead.Title)

	if group.Promoted {
		logger.Warn("subtask appeared before any top-level task, running it as its own group")
	}

	branch := o.naming.BranchName(group.Lead.Title)
	gr.Branch = branch
	logger = logger.WithBranch(branch)

	tasks := group.Tasks()
	ws, err := mgr.Create(ctx, branch, baseBranch)
	if err != nil {
		o.failGroup(machine, &gr, err)
		gr.Tasks = skippedTasks(tasks, 0)
		gr.Phase = machine.Phase()
		gr.Transitions = machine.History()
		logger.Error("workspace creation failed, skipping group", "error", err.Error())
		return gr, nil
	}
	gr.Workspace = ws.Path

	defer func() {
		gr.Phase = machine.Phase()
		gr.Transitions = machine.History()
		o.retireWorkspace(ctx, mgr, ws, &gr, logger)
	}()

	if err := machine.TransitionTo(GroupWorkspaceReady); err != nil {
		return gr, err
	}
	if err := machine.TransitionTo(GroupImplementing); err != nil {
		return gr, err
	}

	for i, t := range tasks {
		tr, err := o.processTask(ctx, ws, loader, t, logger)
		gr.Tasks = append(gr.Tasks, tr)
		if tr.Committed {
			gr.Commits++
		}
		if err != nil {
			o.failGroup(machine, &gr, err)
			gr.Tasks = append(gr.Tasks, skippedTasks(tasks, i+1)...)
			if errors.AbortsRun(err) {
				logger.Error("required backend unavailable, aborting run", "error", err.Error())
				return gr, err
			}
			logger.Error("group failed, remaining tasks skipped",
				"failed_task", t.Title, "skipped", len(tasks)-i-1, "error", err.Error())
			return gr, nil
		}
	}

	if err := machine.TransitionTo(GroupCommitted); err != nil {
		return gr, err
	}

	res, err := o.publisher.Publish(ctx, ws, group)
	if res != nil {
		gr.Publish = res.State
		gr.PullRequest = res.URL
	}
	if err != nil {
		o.failGroup(machine, &gr, err)
		o.logRecovery(gr, logger)
		return gr, nil
	}
	if err := machine.TransitionTo(GroupPublished); err != nil {
		return gr, err
	}

	logger.Info("group finished",
		"publish_state", string(gr.Publish), "commits", gr.Commits, "pull_request", gr.PullRequest)
	return gr, nil
}

// processTask implements and commits one checklist task inside the group's
// workspace.
func (o *Orchestrator) processTask(ctx context.Context, ws *workspace.Workspace, loader *specfile.Loader, t task.Task, logger *logging.Logger) (TaskReport, error) {
	tr := TaskReport{Title: t.Title, Status: TaskImplemented}

	spec, err := loader.Load(t.SpecLink)
	if err != nil {
		// An escaping link is refused, not fatal: the backend still gets
		// the task title, just no specification text.
		logger.Warn("specification link refused", "task", t.Title, "link", t.SpecLink, "error", err.Error())
		spec = specfile.Content{}
	} else if t.SpecLink != "" && spec.Empty() {
		logger.Warn("specification file not readable", "task", t.Title, "link", t.SpecLink)
	} else if spec.Truncated {
		logger.Warn("specification truncated", "task", t.Title, "path", spec.Path, "limit_bytes", specfile.MaxSpecBytes)
	}

	res, err := o.backend.Implement(ctx, ws.Path, t, spec)
	if err != nil {
		tr.Status = TaskFailed
		return tr, err
	}
	if res.MarkerPath != "" {
		tr.Status = TaskMarker
		tr.Marker = res.MarkerPath
	}

	commit, err := o.committer.Commit(ctx, ws, t)
	if err != nil {
		tr.Status = TaskFailed
		return tr, err
	}
	tr.Committed = commit.Committed
	return tr, nil
}

// failGroup records a failure on both the machine and the report.
func (o *Orchestrator) failGroup(machine *Machine, gr *GroupReport, err error) {
	_ = machine.Fail(err.Error())
	gr.Error = err.Error()
}

// retireWorkspace applies the retention policy once a group reaches a
// terminal phase. Failed groups always keep their workspace; published ones
// drop it unless preservation is configured; local-only ones keep it for
// morning review unless cleanup_local_only says otherwise.
func (o *Orchestrator) retireWorkspace(ctx context.Context, mgr workspaces, ws *workspace.Workspace, gr *GroupReport, logger *logging.Logger) {
	switch {
	case gr.Phase == GroupPublished && gr.Publish == pipeline.StatePublished:
		if o.cfg.Workspace.Preserve {
			logger.Info("workspace preserved after publish", "workspace", ws.Path)
			return
		}
	case gr.Phase == GroupPublished:
		if !o.cfg.Publish.CleanupLocalOnly {
			logger.Info("changes remain local, workspace kept for review",
				"workspace", ws.Path, "base", ws.BaseBranch)
			return
		}
	default:
		logger.Info("workspace kept for recovery", "workspace", ws.Path)
		return
	}

	if err := mgr.Remove(ctx, ws); err != nil {
		logger.Warn("workspace removal failed", "workspace", ws.Path, "error", err.Error())
		return
	}
	logger.Info("workspace removed", "workspace", ws.Path)
}

// logRecovery spells out how to finish a group whose publish failed. The
// branch is never deleted on these paths, so the instructions always apply.
func (o *Orchestrator) logRecovery(gr GroupReport, logger *logging.Logger) {
	switch gr.Publish {
	case pipeline.StatePushFailed:
		logger.Error("push failed, nothing reached the remote",
			"error", gr.Error, "recover", "git push -u origin "+gr.Branch)
	case pipeline.StatePublishPartial:
		logger.Error("branch pushed but pull request creation failed",
			"error", gr.Error, "recover", "retry the pull request only, e.g. gh pr create --head "+gr.Branch)
	default:
		logger.Error("publish failed", "error", gr.Error)
	}
}

// skippedTasks marks tasks[from:] as skipped for the report.
func skippedTasks(tasks []task.Task, from int) []TaskReport {
	out := make([]TaskReport, 0, len(tasks)-from)
	for _, t := range tasks[from:] {
		out = append(out, TaskReport{Title: t.Title, Status: TaskSkipped})
	}
	return out
}
