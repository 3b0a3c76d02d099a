package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nightshift-labs/nightshift/internal/errors"
	"github.com/nightshift-labs/nightshift/internal/logging"
	"github.com/nightshift-labs/nightshift/internal/task"
	"github.com/nightshift-labs/nightshift/internal/testutil"
	"github.com/nightshift-labs/nightshift/internal/workspace"
)

// commitExecutor scripts the git calls Commit makes and records them.
type commitExecutor struct {
	calls       [][]string
	stagedEmpty bool
	failAdd     bool
	failCommit  bool
	statOut     string
}

func (f *commitExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	switch args[0] {
	case "add":
		if f.failAdd {
			return []byte("fatal: unable to stage"), errors.New("exit status 128")
		}
	case "diff":
		return []byte(f.statOut), nil
	case "commit":
		if f.failCommit {
			return []byte("fatal: could not write commit"), errors.New("exit status 1")
		}
	}
	return nil, nil
}

func (f *commitExecutor) RunQuiet(ctx context.Context, dir, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.stagedEmpty {
		return nil
	}
	return errors.New("exit status 1")
}

func (f *commitExecutor) commitMessage() (string, bool) {
	for _, call := range f.calls {
		if len(call) >= 4 && call[1] == "commit" && call[2] == "-m" {
			return call[3], true
		}
	}
	return "", false
}

// fakeAssist is a scriptable assist.Client.
type fakeAssist struct {
	reply     string
	err       error
	available bool
	prompt    string
}

func (f *fakeAssist) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAssist) Available() bool { return f.available }

func testWorkspace() *workspace.Workspace {
	return &workspace.Workspace{
		Path:       "/work/ws",
		Branch:     "nightshift/add-dark-mode-20250102-030405-9f2c",
		BaseBranch: "main",
		RepoDir:    "/work/repo",
	}
}

func TestCommitterCommit(t *testing.T) {
	lead := task.Task{Title: "Add dark mode"}

	t.Run("commits staged changes with fallback message", func(t *testing.T) {
		fake := &commitExecutor{}
		c := NewCommitterWithExecutor(nil, fake, logging.NopLogger())

		res, err := c.Commit(context.Background(), testWorkspace(), lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if !res.Committed {
			t.Fatal("Committed = false, want true")
		}
		if res.Message != "feat: add dark mode" {
			t.Errorf("Message = %q, want fallback", res.Message)
		}
		msg, ok := fake.commitMessage()
		if !ok || msg != "feat: add dark mode" {
			t.Errorf("git commit -m %q (ran=%v), want fallback message", msg, ok)
		}
	})

	t.Run("empty staged diff is success without commit", func(t *testing.T) {
		fake := &commitExecutor{stagedEmpty: true}
		c := NewCommitterWithExecutor(nil, fake, logging.NopLogger())

		res, err := c.Commit(context.Background(), testWorkspace(), lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if res.Committed {
			t.Error("Committed = true, want false")
		}
		if _, ok := fake.commitMessage(); ok {
			t.Error("git commit ran despite empty staged diff")
		}
	})

	t.Run("staging failure aborts the group", func(t *testing.T) {
		fake := &commitExecutor{failAdd: true}
		c := NewCommitterWithExecutor(nil, fake, logging.NopLogger())

		_, err := c.Commit(context.Background(), testWorkspace(), lead)
		if !errors.Is(err, errors.ErrCommitFailed) {
			t.Errorf("error = %v, want ErrCommitFailed", err)
		}
	})

	t.Run("commit failure aborts the group", func(t *testing.T) {
		fake := &commitExecutor{failCommit: true}
		c := NewCommitterWithExecutor(nil, fake, logging.NopLogger())

		_, err := c.Commit(context.Background(), testWorkspace(), lead)
		if !errors.Is(err, errors.ErrCommitFailed) {
			t.Errorf("error = %v, want ErrCommitFailed", err)
		}
	})

	t.Run("uses assisted message when available", func(t *testing.T) {
		fake := &commitExecutor{statOut: " internal/ui/theme.go | 42 ++++++++"}
		client := &fakeAssist{available: true, reply: "feat: introduce dark color theme"}
		c := NewCommitterWithExecutor(client, fake, logging.NopLogger())

		res, err := c.Commit(context.Background(), testWorkspace(), lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if res.Message != "feat: introduce dark color theme" {
			t.Errorf("Message = %q", res.Message)
		}
		if !strings.Contains(client.prompt, "Add dark mode") {
			t.Error("prompt is missing the task title")
		}
		if !strings.Contains(client.prompt, "theme.go") {
			t.Error("prompt is missing the staged diff summary")
		}
	})

	t.Run("assist failure falls back", func(t *testing.T) {
		fake := &commitExecutor{}
		client := &fakeAssist{available: true, err: errors.New("model overloaded")}
		c := NewCommitterWithExecutor(client, fake, logging.NopLogger())

		res, err := c.Commit(context.Background(), testWorkspace(), lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if res.Message != "feat: add dark mode" {
			t.Errorf("Message = %q, want fallback", res.Message)
		}
	})
}

func TestSanitizeSubject(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "clean single line",
			reply: "feat: add dark mode",
			want:  "feat: add dark mode",
		},
		{
			name:  "keeps only the first line",
			reply: "feat: add dark mode\n\nThis commit introduces a theme toggle.",
			want:  "feat: add dark mode",
		},
		{
			name:  "strips code fences",
			reply: "```\nfix: correct theme fallback\n```",
			want:  "fix: correct theme fallback",
		},
		{
			name:  "strips surrounding quotes",
			reply: `"refactor: extract palette"`,
			want:  "refactor: extract palette",
		},
		{
			name:  "caps overlong subjects",
			reply: strings.Repeat("feat: very long subject ", 10),
			want:  "", // checked by length below
		},
		{
			name:  "whitespace only becomes empty",
			reply: "   \n\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeSubject(tt.reply)
			if len(got) > maxSubjectLen {
				t.Fatalf("sanitizeSubject() length = %d, want <= %d", len(got), maxSubjectLen)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("sanitizeSubject() = %q, want %q", got, tt.want)
			}
			if tt.name == "whitespace only becomes empty" && got != "" {
				t.Errorf("sanitizeSubject() = %q, want empty", got)
			}
		})
	}
}

func TestFallbackMessage(t *testing.T) {
	if got := FallbackMessage("Add Dark Mode"); got != "feat: add dark mode" {
		t.Errorf("FallbackMessage() = %q", got)
	}
}

// lastCommitSubject reads the subject line of HEAD.
func lastCommitSubject(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "-1", "--pretty=%s")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git log failed: %v", err)
	}
	return strings.TrimSpace(string(out))
}

func TestCommitterCommitIntegration(t *testing.T) {
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupTestRepo(t)
	mgr, err := workspace.NewManager(repoDir, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ws, err := mgr.Create(context.Background(), "nightshift/add-dark-mode-test", "main")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c := NewCommitter(nil, logging.NopLogger())
	lead := task.Task{Title: "Add dark mode"}

	t.Run("no changes", func(t *testing.T) {
		before := testutil.GetCommitCount(t, ws.Path)
		res, err := c.Commit(context.Background(), ws, lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if res.Committed {
			t.Error("Committed = true on a clean tree")
		}
		if got := testutil.GetCommitCount(t, ws.Path); got != before {
			t.Errorf("commit count changed from %d to %d", before, got)
		}
	})

	t.Run("with changes", func(t *testing.T) {
		path := filepath.Join(ws.Path, "theme.go")
		if err := os.WriteFile(path, []byte("package ui\n"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}

		before := testutil.GetCommitCount(t, ws.Path)
		res, err := c.Commit(context.Background(), ws, lead)
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if !res.Committed {
			t.Fatal("Committed = false, want true")
		}
		if got := testutil.GetCommitCount(t, ws.Path); got != before+1 {
			t.Errorf("commit count = %d, want %d", got, before+1)
		}
		if subject := lastCommitSubject(t, ws.Path); subject != "feat: add dark mode" {
			t.Errorf("commit subject = %q", subject)
		}
		if testutil.HasUncommittedChanges(t, ws.Path) {
			t.Error("working tree still dirty after commit")
		}
	})
}
