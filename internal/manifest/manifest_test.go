package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads targets in file order", func(t *testing.T) {
		path := writeManifest(t, `
repos:
  - path: /repos/api
  - path: /repos/web
    tasks_file: docs/TASKS.md
    base_branch: develop
`)

		targets, err := Load(path, "TASKS.md")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if len(targets) != 2 {
			t.Fatalf("expected 2 targets, got %d", len(targets))
		}
		if targets[0].Path != "/repos/api" {
			t.Errorf("targets[0].Path = %q", targets[0].Path)
		}
		if targets[0].TasksFile != "TASKS.md" {
			t.Errorf("expected default tasks file, got %q", targets[0].TasksFile)
		}
		if targets[1].TasksFile != "docs/TASKS.md" {
			t.Errorf("expected per-repo tasks file, got %q", targets[1].TasksFile)
		}
		if targets[1].BaseBranch != "develop" {
			t.Errorf("expected base branch override, got %q", targets[1].BaseBranch)
		}
	})

	t.Run("skips disabled targets", func(t *testing.T) {
		path := writeManifest(t, `
repos:
  - path: /repos/api
  - path: /repos/old
    disabled: true
  - path: /repos/web
`)

		targets, err := Load(path, "TASKS.md")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if len(targets) != 2 {
			t.Fatalf("expected 2 targets, got %d", len(targets))
		}
		if targets[0].Path != "/repos/api" || targets[1].Path != "/repos/web" {
			t.Errorf("unexpected targets: %+v", targets)
		}
	})

	t.Run("expands tilde in paths", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("cannot determine home dir: %v", err)
		}

		path := writeManifest(t, `
repos:
  - path: ~/src/api
`)

		targets, err := Load(path, "TASKS.md")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		expected := filepath.Join(home, "src/api")
		if targets[0].Path != expected {
			t.Errorf("expected %q, got %q", expected, targets[0].Path)
		}
	})

	t.Run("missing file returns ErrNotFound", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "TASKS.md")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("malformed YAML rejected", func(t *testing.T) {
		path := writeManifest(t, "repos: [whoops")

		_, err := Load(path, "TASKS.md")
		if err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("empty repos list rejected", func(t *testing.T) {
		path := writeManifest(t, "repos: []")

		_, err := Load(path, "TASKS.md")
		if err == nil || !strings.Contains(err.Error(), "no repositories") {
			t.Errorf("expected 'no repositories' error, got %v", err)
		}
	})

	t.Run("blank path rejected", func(t *testing.T) {
		path := writeManifest(t, `
repos:
  - path: ""
`)

		_, err := Load(path, "TASKS.md")
		if err == nil || !strings.Contains(err.Error(), "path cannot be empty") {
			t.Errorf("expected empty-path error, got %v", err)
		}
	})

	t.Run("duplicate paths rejected", func(t *testing.T) {
		path := writeManifest(t, `
repos:
  - path: /repos/api
  - path: /repos/api
`)

		_, err := Load(path, "TASKS.md")
		if err == nil || !strings.Contains(err.Error(), "duplicate path") {
			t.Errorf("expected duplicate error, got %v", err)
		}
	})

	t.Run("tasks_file traversal rejected", func(t *testing.T) {
		path := writeManifest(t, `
repos:
  - path: /repos/api
    tasks_file: ../../etc/passwd
`)

		_, err := Load(path, "TASKS.md")
		if err == nil || !strings.Contains(err.Error(), "parent directory") {
			t.Errorf("expected traversal error, got %v", err)
		}
	})
}

func TestSingle(t *testing.T) {
	targets := Single("/repos/api", "TASKS.md", "main")

	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].Path != "/repos/api" {
		t.Errorf("Path = %q", targets[0].Path)
	}
	if targets[0].TasksFile != "TASKS.md" {
		t.Errorf("TasksFile = %q", targets[0].TasksFile)
	}
	if targets[0].BaseBranch != "main" {
		t.Errorf("BaseBranch = %q", targets[0].BaseBranch)
	}
	if targets[0].Disabled {
		t.Error("ad-hoc target should not be disabled")
	}
}
