// Package forge opens pull requests on code-hosting services. Two
// implementations exist: GHCLI shells out to the gh CLI and GitHubAPI talks
// to the GitHub REST API directly. Both receive a fully assembled Draft;
// deciding what goes into a pull request is the publish pipeline's job, the
// forge only delivers it.
package forge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/config"
	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
)

// Draft is a pull request ready to be opened.
type Draft struct {
	// Title is the pull request title.
	Title string

	// Body is the pull request description in markdown.
	Body string

	// Head is the branch holding the changes.
	Head string

	// Base is the branch the pull request merges into.
	Base string

	// Draft marks the pull request as a draft.
	Draft bool

	// Labels are applied to the pull request.
	Labels []string

	// Reviewers are requested on the pull request.
	Reviewers []string
}

// Forge creates pull requests on a code-hosting service.
type Forge interface {
	// Name identifies the implementation, matching its publish.forge value.
	Name() string

	// Verify checks that the forge is usable: the client is installed and
	// authenticated. Called once per run before any group is processed.
	Verify(ctx context.Context) error

	// CreatePullRequest opens a pull request for the repository at dir and
	// returns its URL.
	CreatePullRequest(ctx context.Context, dir string, d Draft) (string, error)
}

// CommandExecutor runs a command in dir and returns its combined output.
// This allows tests to fake gh invocations.
type CommandExecutor func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// defaultExecutor runs commands using os/exec.
var defaultExecutor CommandExecutor = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// New selects a forge implementation from the publish configuration.
func New(cfg config.PublishConfig, logger *logging.Logger) (Forge, error) {
	switch cfg.Forge {
	case "", "gh":
		return NewGHCLI(), nil
	case "api":
		return NewGitHubAPI(cfg.Token, logger)
	default:
		return nil, fmt.Errorf("%w: unknown forge %q (valid: %s)",
			errors.ErrInvalidInput, cfg.Forge, strings.Join(config.ValidForges(), ", "))
	}
}
