package repo

import (
	"strings"
	"testing"

	"github.com/nightshift-labs/nightshift/internal/testutil"
)

func TestIsRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	if !IsRepo(dir) {
		t.Errorf("IsRepo(%q) = false for a git repository", dir)
	}

	plain := t.TempDir()
	if IsRepo(plain) {
		t.Errorf("IsRepo(%q) = true for a plain directory", plain)
	}
}

func TestOpen(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if r.Path() != dir {
		t.Errorf("Path() = %q, want %q", r.Path(), dir)
	}

	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open() of a plain directory succeeded, want error")
	}
}

func TestRemotes(t *testing.T) {
	testutil.SkipIfNoGit(t)

	t.Run("repository without remote", func(t *testing.T) {
		r, err := Open(testutil.SetupTestRepo(t))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if r.HasRemote() {
			t.Error("HasRemote() = true, want false")
		}
		if url := r.RemoteURL(); url != "" {
			t.Errorf("RemoteURL() = %q, want empty", url)
		}
	})

	t.Run("repository with origin", func(t *testing.T) {
		repoDir, remoteDir := testutil.SetupTestRepoWithRemote(t)
		r, err := Open(repoDir)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !r.HasRemote() {
			t.Error("HasRemote() = false, want true")
		}
		if url := r.RemoteURL(); url != remoteDir {
			t.Errorf("RemoteURL() = %q, want %q", url, remoteDir)
		}
	})

	t.Run("non-origin remote is still found", func(t *testing.T) {
		repoDir := testutil.SetupTestRepo(t)
		testutil.RunGit(t, repoDir, "remote", "add", "upstream", "https://example.com/up.git")

		r, err := Open(repoDir)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !r.HasRemote() {
			t.Error("HasRemote() = false with upstream configured")
		}
		if url := r.RemoteURL(); url != "https://example.com/up.git" {
			t.Errorf("RemoteURL() = %q, want upstream URL", url)
		}
	})
}

func TestHeadBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)

	t.Run("branch checkout", func(t *testing.T) {
		r, err := Open(testutil.SetupTestRepo(t))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		branch, err := r.HeadBranch()
		if err != nil {
			t.Fatalf("HeadBranch() error = %v", err)
		}
		if branch != "main" {
			t.Errorf("HeadBranch() = %q, want main", branch)
		}
	})

	t.Run("detached head", func(t *testing.T) {
		dir := testutil.SetupTestRepo(t)
		testutil.RunGit(t, dir, "checkout", "--detach")

		r, err := Open(dir)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := r.HeadBranch(); err == nil || !strings.Contains(err.Error(), "detached") {
			t.Errorf("HeadBranch() error = %v, want detached error", err)
		}
	})
}

func TestBranchExists(t *testing.T) {
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	testutil.CreateBranch(t, dir, "feature-x")

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !r.BranchExists("main") {
		t.Error("BranchExists(main) = false")
	}
	if !r.BranchExists("feature-x") {
		t.Error("BranchExists(feature-x) = false")
	}
	if r.BranchExists("missing") {
		t.Error("BranchExists(missing) = true")
	}
}
