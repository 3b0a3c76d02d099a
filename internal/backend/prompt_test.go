package backend

import (
	"strings"
	"testing"

	"github.com/nightshift-labs/nightshift/internal/specfile"
	"github.com/nightshift-labs/nightshift/internal/task"
)

func TestBuildPromptWithoutSpec(t *testing.T) {
	got := BuildPrompt(task.Task{Title: "Add dark mode"}, specfile.Content{})

	for _, fragment := range []string{
		"Task: Add dark mode",
		"no separate specification",
		"Infer the scope",
		"existing code style",
		"Do not commit",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("prompt missing %q:\n%s", fragment, got)
		}
	}
	if strings.Contains(got, "--- SPECIFICATION") {
		t.Errorf("prompt should not contain a specification section:\n%s", got)
	}
}

func TestBuildPromptWithSpec(t *testing.T) {
	spec := specfile.Content{
		Text: "The toggle must persist across restarts.\n",
		Path: "/repo/docs/dark-mode.md",
	}
	got := BuildPrompt(task.Task{Title: "Add dark mode", SpecLink: "docs/dark-mode.md"}, spec)

	for _, fragment := range []string{
		"Task: Add dark mode",
		"--- SPECIFICATION (/repo/docs/dark-mode.md) ---",
		"The toggle must persist across restarts.",
		"--- END SPECIFICATION ---",
		"ALL requirements",
		"Do not commit",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("prompt missing %q:\n%s", fragment, got)
		}
	}
	if strings.Contains(got, "Infer the scope") {
		t.Errorf("spec-backed prompt should not ask to infer scope:\n%s", got)
	}
	if strings.Contains(got, "truncated") {
		t.Errorf("untruncated spec should not carry a truncation note:\n%s", got)
	}
}

func TestBuildPromptTruncatedSpec(t *testing.T) {
	spec := specfile.Content{
		Text:      "partial requirements",
		Path:      "/repo/docs/big.md",
		Truncated: true,
	}
	got := BuildPrompt(task.Task{Title: "Big one"}, spec)

	if !strings.Contains(got, "truncated at the size cap") {
		t.Errorf("prompt missing truncation note:\n%s", got)
	}
}
