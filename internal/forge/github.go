package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/repo"
)

// GitHubAPI creates pull requests through the GitHub REST API. Unlike GHCLI
// it needs a token and resolves owner and repository from the remote URL of
// the repository it is publishing from.
type GitHubAPI struct {
	client *github.Client
	logger *logging.Logger
}

// NewGitHubAPI creates a GitHubAPI forge. An empty token falls back to the
// GITHUB_TOKEN environment variable; with neither set construction fails,
// surfacing the misconfiguration before any group is processed.
func NewGitHubAPI(token string, logger *logging.Logger) (*GitHubAPI, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: the api forge needs a token (publish.token or GITHUB_TOKEN)",
			errors.ErrForgeAuthRequired)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &GitHubAPI{client: github.NewClient(tc), logger: logger}, nil
}

// Name returns "api".
func (g *GitHubAPI) Name() string { return "api" }

// Verify checks that the token authenticates by fetching the current user.
func (g *GitHubAPI) Verify(ctx context.Context) error {
	_, _, err := g.client.Users.Get(ctx, "")
	if err == nil {
		return nil
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", errors.ErrForgeAuthRequired, err)
		}
	}
	return fmt.Errorf("github api: verify token: %w", err)
}

// CreatePullRequest opens a pull request against the repository behind dir's
// origin remote. Labels and reviewers ride on separate endpoints; their
// failure is logged but does not fail the pull request.
func (g *GitHubAPI) CreatePullRequest(ctx context.Context, dir string, d Draft) (string, error) {
	r, err := repo.Open(dir)
	if err != nil {
		return "", err
	}
	owner, name, err := ParseOwnerRepo(r.RemoteURL())
	if err != nil {
		return "", err
	}

	pr, _, err := g.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(d.Title),
		Body:  github.String(d.Body),
		Head:  github.String(d.Head),
		Base:  github.String(d.Base),
		Draft: github.Bool(d.Draft),
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	if len(d.Labels) > 0 {
		if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, owner, name, pr.GetNumber(), d.Labels); err != nil {
			g.logger.Warn("failed to add labels to pull request",
				"pr", pr.GetNumber(), "labels", strings.Join(d.Labels, ","), "error", err)
		}
	}
	if len(d.Reviewers) > 0 {
		if _, _, err := g.client.PullRequests.RequestReviewers(ctx, owner, name, pr.GetNumber(),
			github.ReviewersRequest{Reviewers: d.Reviewers}); err != nil {
			g.logger.Warn("failed to request reviewers on pull request",
				"pr", pr.GetNumber(), "reviewers", strings.Join(d.Reviewers, ","), "error", err)
		}
	}

	return pr.GetHTMLURL(), nil
}

// classifyAPIError maps GitHub API error responses onto the forge sentinels.
func classifyAPIError(err error) error {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return fmt.Errorf("github api: %w", err)
	}

	switch ghErr.Response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", errors.ErrForgeAuthRequired, err)

	case http.StatusUnprocessableEntity:
		// 422 covers several validation failures; no-commits is the one the
		// pipeline cares about distinguishing.
		for _, e := range ghErr.Errors {
			if strings.Contains(strings.ToLower(e.Message), "no commits between") {
				return fmt.Errorf("%w: %v", errors.ErrForgeNoCommits, err)
			}
		}
	}

	return fmt.Errorf("github api: %w", err)
}

// ParseOwnerRepo extracts the owner and repository name from a git remote
// URL. It understands https, ssh, and scp-like forms:
//
//	https://github.com/owner/repo.git
//	ssh://git@github.com/owner/repo.git
//	git@github.com:owner/repo.git
func ParseOwnerRepo(remoteURL string) (owner, name string, err error) {
	raw := strings.TrimSpace(remoteURL)
	if raw == "" {
		return "", "", fmt.Errorf("%w: repository has no remote URL", errors.ErrInvalidInput)
	}

	var path string
	switch {
	case strings.Contains(raw, "://"):
		u, parseErr := url.Parse(raw)
		if parseErr != nil {
			return "", "", fmt.Errorf("parse remote URL %q: %w", raw, parseErr)
		}
		path = u.Path
	case strings.Contains(raw, "@") && strings.Contains(raw, ":"):
		// scp-like: git@github.com:owner/repo.git
		path = raw[strings.Index(raw, ":")+1:]
	default:
		path = raw
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("%w: cannot extract owner/repo from remote URL %q",
			errors.ErrInvalidInput, remoteURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// Ensure GitHubAPI implements Forge
var _ Forge = (*GitHubAPI)(nil)
