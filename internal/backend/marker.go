package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/util"
)

// WriteMarker drops a pending-task file into the workspace instead of running
// a backend. The file is committed like any other change, so the branch and
// pull request still exist in the morning with a precise record of what was
// not implemented.
func WriteMarker(dir string, t task.Task, now time.Time) (string, error) {
	name := fmt.Sprintf("pending-task-%s.md", util.Slugify(t.Title))
	path := filepath.Join(dir, name)

	specLink := t.SpecLink
	if specLink == "" {
		specLink = "none"
	}

	var b strings.Builder
	b.WriteString("# Pending task\n\n")
	b.WriteString("No code-generation backend was available when the run reached this task.\n")
	b.WriteString("Implement it manually and delete this file.\n\n")
	fmt.Fprintf(&b, "- Task: %s\n", t.Title)
	fmt.Fprintf(&b, "- Specification: %s\n", specLink)
	fmt.Fprintf(&b, "- Generated: %s\n\n", now.UTC().Format(time.RFC3339))
	b.WriteString("## Manual implementation\n\n")
	b.WriteString("1. Read the task above and its linked specification, if any.\n")
	b.WriteString("2. Implement the change in this workspace on the current branch.\n")
	b.WriteString("3. Amend or extend the branch's commit, then push.\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write pending-task marker: %w", err)
	}
	return path, nil
}
