package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/specfile"
	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/util"
)

// excerptLimit bounds how much backend output is carried in results and
// errors. Full output can be megabytes of streamed tokens; the tail is what
// says why a run failed.
const excerptLimit = 2048

// Runner executes the backend process and returns its combined output.
// Injected so tests run without the real CLI.
type Runner func(ctx context.Context, dir, stdin, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, dir, stdin, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	return cmd.CombinedOutput()
}

// Result reports one dispatch, successful or not.
type Result struct {
	// Backend is the variant that ran (or would have run).
	Backend string

	// Succeeded is true when the workspace is ready for the commit step:
	// either the backend exited zero or the marker fallback wrote its file.
	Succeeded bool

	// ExitCode is the backend process exit code; -1 when no process ran.
	ExitCode int

	// LogExcerpt is the tail of the backend's combined output.
	LogExcerpt string

	// MarkerPath is set when no backend ran and a pending-task marker was
	// written instead.
	MarkerPath string
}

// Dispatcher runs the configured backend once per task, inside the task
// group's workspace. It owns availability probing and the marker-file
// fallback; the variants only describe their command lines.
type Dispatcher struct {
	backend  Backend
	command  string
	model    string
	allowed  []string
	denied   []string
	required bool
	timeout  time.Duration

	run      Runner
	lookPath func(string) (string, error)
	now      func() time.Time
	logger   *logging.Logger
}

// New builds a Dispatcher for the configured backend kind.
func New(cfg config.BackendConfig, logger *logging.Logger) (*Dispatcher, error) {
	b, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}

	command := cfg.Command
	if command == "" {
		command = b.Command()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Dispatcher{
		backend:  b,
		command:  command,
		model:    cfg.Model,
		allowed:  cfg.AllowedTools,
		denied:   cfg.DeniedTools,
		required: cfg.Required,
		timeout:  cfg.Timeout(),
		run:      defaultRunner,
		lookPath: exec.LookPath,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Name returns the active variant's registry name.
func (d *Dispatcher) Name() string { return d.backend.Name() }

// Available reports whether the backend executable is on PATH.
func (d *Dispatcher) Available() bool {
	_, err := d.lookPath(d.command)
	return err == nil
}

// Verify is the pre-run availability gate. A missing required backend is the
// one condition that aborts a whole run, and it should abort before any
// workspace is created. A missing optional backend verifies fine; dispatches
// will fall back to marker files.
func (d *Dispatcher) Verify() error {
	if d.Available() {
		return nil
	}
	if d.required {
		return errors.NewBackendError(
			fmt.Sprintf("executable %q not found and backend.required is set", d.command),
			errors.ErrBackendRequired).
			WithBackend(d.backend.Name()).
			WithSeverity(errors.SeverityCritical)
	}
	d.logger.Warn("backend executable not found, tasks will produce pending-task markers",
		"backend", d.backend.Name(), "command", d.command)
	return nil
}

// Implement runs the backend for one task inside dir. When the backend is
// unavailable and optional, it writes a pending-task marker and reports
// success so the commit step still captures something reviewable. A non-zero
// exit is returned as an error that aborts the surrounding task group only.
func (d *Dispatcher) Implement(ctx context.Context, dir string, t task.Task, spec specfile.Content) (*Result, error) {
	if !d.Available() {
		if d.required {
			return nil, errors.NewBackendError(
				fmt.Sprintf("executable %q not found and backend.required is set", d.command),
				errors.ErrBackendRequired).
				WithBackend(d.backend.Name()).
				WithTask(t.Title).
				WithSeverity(errors.SeverityCritical)
		}
		return d.fallbackToMarker(dir, t)
	}

	prompt := BuildPrompt(t, spec)
	opts := RunOptions{
		Prompt:       prompt,
		Model:        d.model,
		AllowedTools: d.allowed,
		DeniedTools:  d.denied,
	}
	stdin := ""
	if d.backend.PromptViaStdin() {
		stdin = prompt
	}

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.logger.Info("dispatching task to backend",
		"backend", d.backend.Name(), "task", t.Title, "workspace", dir)
	started := d.now()
	output, err := d.run(runCtx, dir, stdin, d.command, d.backend.Args(opts)...)
	excerpt := util.Tail(strings.TrimSpace(string(output)), excerptLimit)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		message := "implementation run failed"
		switch runCtx.Err() {
		case context.DeadlineExceeded:
			message = fmt.Sprintf("implementation run did not finish within %s", d.timeout)
		case context.Canceled:
			message = "implementation run canceled"
		}

		return &Result{
				Backend:    d.backend.Name(),
				Succeeded:  false,
				ExitCode:   exitCode,
				LogExcerpt: excerpt,
			}, errors.NewBackendError(message, errors.ErrBackendFailed).
				WithBackend(d.backend.Name()).
				WithTask(t.Title).
				WithExitCode(exitCode).
				WithLogExcerpt(excerpt)
	}

	d.logger.Info("backend finished task",
		"backend", d.backend.Name(), "task", t.Title, "duration", d.now().Sub(started).String())
	return &Result{
		Backend:    d.backend.Name(),
		Succeeded:  true,
		ExitCode:   0,
		LogExcerpt: excerpt,
	}, nil
}

// fallbackToMarker is the soft-unavailability path: record the task in the
// workspace so it ships with the branch, and report success.
func (d *Dispatcher) fallbackToMarker(dir string, t task.Task) (*Result, error) {
	path, err := WriteMarker(dir, t, d.now())
	if err != nil {
		return nil, errors.NewBackendError("marker fallback failed", err).
			WithBackend(d.backend.Name()).
			WithTask(t.Title)
	}

	d.logger.Warn("backend unavailable, wrote pending-task marker",
		"backend", d.backend.Name(), "task", t.Title, "marker", path)
	return &Result{
		Backend:    d.backend.Name(),
		Succeeded:  true,
		ExitCode:   -1,
		MarkerPath: path,
	}, nil
}
