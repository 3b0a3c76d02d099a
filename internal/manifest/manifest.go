// Package manifest loads the list of repositories a run operates on.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nightshift-labs/nightshift/internal/util"
)

// ErrNotFound indicates the manifest file does not exist.
var ErrNotFound = errors.New("manifest file not found")

// Manifest is the top-level repos manifest document.
type Manifest struct {
	// Repos lists the repositories to process, in execution order.
	Repos []Target `yaml:"repos"`
}

// Target describes one repository entry in the manifest.
type Target struct {
	// Path is the repository root. Supports ~ expansion.
	Path string `yaml:"path"`
	// TasksFile overrides the configured checklist path for this
	// repository (relative to the repository root).
	TasksFile string `yaml:"tasks_file,omitempty"`
	// BaseBranch overrides base branch detection for new worktrees and
	// pull requests.
	BaseBranch string `yaml:"base_branch,omitempty"`
	// Disabled skips the repository without removing its entry.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Load reads and validates the manifest at path. Targets come back in file
// order with ~ expanded and the default tasks file applied where an entry
// omits one.
func Load(path, defaultTasksFile string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	targets, err := normalize(m.Repos, defaultTasksFile)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return targets, nil
}

// Single builds the one-entry target list used when --repo bypasses the
// manifest.
func Single(repoDir, tasksFile, baseBranch string) []Target {
	return []Target{{
		Path:       util.ExpandHome(repoDir),
		TasksFile:  tasksFile,
		BaseBranch: baseBranch,
	}}
}

func normalize(targets []Target, defaultTasksFile string) ([]Target, error) {
	if len(targets) == 0 {
		return nil, errors.New("no repositories listed")
	}

	seen := make(map[string]bool, len(targets))
	out := make([]Target, 0, len(targets))
	for i, t := range targets {
		if strings.TrimSpace(t.Path) == "" {
			return nil, fmt.Errorf("repos[%d]: path cannot be empty", i)
		}

		t.Path = util.ExpandHome(t.Path)
		if seen[t.Path] {
			return nil, fmt.Errorf("repos[%d]: duplicate path %s", i, t.Path)
		}
		seen[t.Path] = true

		if t.TasksFile == "" {
			t.TasksFile = defaultTasksFile
		}
		if strings.Contains(t.TasksFile, "..") {
			return nil, fmt.Errorf("repos[%d]: tasks_file cannot contain parent directory references", i)
		}

		if t.Disabled {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
