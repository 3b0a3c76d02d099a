// Package repo inspects target repositories without mutating them. All
// mutation goes through the workspace and pipeline layers, which shell out to
// git; this package reads repository state directly.
package repo

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repo is a read-only handle on one git repository.
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{path: path, repo: r}, nil
}

// IsRepo reports whether path holds a git repository.
func IsRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// Path returns the repository's working directory.
func (r *Repo) Path() string { return r.path }

// HasRemote reports whether the repository has any configured remote.
func (r *Repo) HasRemote() bool {
	remotes, err := r.repo.Remotes()
	return err == nil && len(remotes) > 0
}

// RemoteURL returns the first URL of the origin remote, falling back to the
// first configured remote when origin is absent. Empty when the repository
// has no remotes.
func (r *Repo) RemoteURL() string {
	if remote, err := r.repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0]
		}
	}
	remotes, err := r.repo.Remotes()
	if err != nil || len(remotes) == 0 {
		return ""
	}
	if urls := remotes[0].Config().URLs; len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// HeadBranch returns the branch HEAD points at. Detached HEAD is an error:
// there is no branch to base new work on.
func (r *Repo) HeadBranch() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD of %s: %w", r.path, err)
	}
	if !ref.Name().IsBranch() {
		return "", fmt.Errorf("HEAD of %s is detached at %s", r.path, ref.Hash().String()[:8])
	}
	return ref.Name().Short(), nil
}

// BranchExists reports whether a local branch ref with the given name exists.
func (r *Repo) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}
