// Package assist provides a thin client for one-shot natural language
// completions backed by a local CLI tool. Callers treat it as a best-effort
// helper: every caller owns a deterministic fallback for when the client is
// disabled, missing, or misbehaving.
package assist

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nightshift-labs/nightshift/internal/config"
)

// ErrDisabled indicates a completion was requested from a disabled client.
var ErrDisabled = errors.New("assist is disabled")

// ErrUnavailable indicates the assist command is not installed or not in PATH.
var ErrUnavailable = errors.New("assist command is not installed or not in PATH")

// ErrEmptyOutput indicates the assist command succeeded but produced no text.
var ErrEmptyOutput = errors.New("assist command returned empty output")

// Client produces one-shot text completions.
type Client interface {
	// Complete sends prompt to the assistant and returns the trimmed
	// completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Available reports whether the client can serve completions right now.
	Available() bool
}

// CommandExecutor is a function type that executes a command and returns its
// standard output. This allows for dependency injection in tests.
type CommandExecutor func(ctx context.Context, name string, args ...string) ([]byte, error)

// defaultExecutor runs commands using os/exec.
var defaultExecutor CommandExecutor = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// New builds a Client from cfg. A disabled config yields a client whose
// completions fail fast with ErrDisabled so callers drop straight to their
// fallback strategies.
func New(cfg config.AssistConfig) Client {
	if !cfg.Enabled {
		return Disabled{}
	}
	return NewCLIClient(cfg.Command, cfg.Timeout())
}

// CLIClient shells out to a local assistant CLI in one-shot print mode.
type CLIClient struct {
	command  string
	timeout  time.Duration
	execute  CommandExecutor
	lookPath func(string) (string, error)
}

// NewCLIClient creates a client that invokes command with --print for each
// completion. A timeout of zero disables the per-call deadline.
func NewCLIClient(command string, timeout time.Duration) *CLIClient {
	return &CLIClient{
		command:  command,
		timeout:  timeout,
		execute:  defaultExecutor,
		lookPath: exec.LookPath,
	}
}

// Available reports whether the assistant command resolves in PATH.
func (c *CLIClient) Available() bool {
	_, err := c.lookPath(c.command)
	return err == nil
}

// Complete invokes the assistant CLI with the prompt and returns its trimmed
// standard output.
func (c *CLIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	if _, err := c.lookPath(c.command); err != nil {
		return "", fmt.Errorf("%s: %w", c.command, ErrUnavailable)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.execute(ctx, c.command, "--print", prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s did not finish in time: %w", c.command, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s failed: %w\nstderr: %s", c.command, err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to run %s: %w", c.command, err)
	}

	text := strings.TrimSpace(string(output))
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// Disabled is a Client that never serves completions.
type Disabled struct{}

// Complete always fails with ErrDisabled.
func (Disabled) Complete(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// Available always reports false.
func (Disabled) Available() bool { return false }

// StripFences removes a surrounding markdown code fence from s, if present.
// Assistant CLIs often wrap structured replies in ``` blocks even when asked
// not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	// Drop the rest of the opening fence line, which may carry a language tag.
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return strings.TrimSpace(rest)
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}
