package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightshift-labs/nightshift/internal/pipeline"
)

func sampleReport(repoDir, id string, started time.Time) *RunReport {
	return &RunReport{
		ID:         id,
		Repo:       repoDir,
		TasksFile:  "TASKS.md",
		Backend:    "claude",
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Minute),
		Groups: []GroupReport{
			{
				Lead:        "Add dark mode",
				Branch:      "nightshift/add-dark-mode-20260825-013000-9f2c",
				Phase:       GroupPublished,
				Publish:     pipeline.StatePublished,
				PullRequest: "https://github.com/acme/widgets/pull/7",
				Commits:     2,
				Tasks: []TaskReport{
					{Title: "Add dark mode", Status: TaskImplemented, Committed: true},
					{Title: "Add theme toggle", Status: TaskImplemented, Committed: true},
				},
				Transitions: []Transition{
					{From: GroupIdle, To: GroupWorkspaceReady, Timestamp: started},
				},
			},
		},
	}
}

func TestReportSaveLoad(t *testing.T) {
	repoDir := t.TempDir()
	started := time.Date(2026, 8, 25, 1, 30, 0, 0, time.UTC)
	report := sampleReport(repoDir, "run-1", started)

	if err := report.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(ReportPath(repoDir, "run-1")); err != nil {
		t.Fatalf("report file: %v", err)
	}

	loaded, err := LoadReport(repoDir, "run-1")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded.ID != report.ID || loaded.Repo != report.Repo || loaded.Backend != report.Backend {
		t.Errorf("loaded = %+v", loaded)
	}
	if !loaded.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, started)
	}
	if len(loaded.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(loaded.Groups))
	}
	g := loaded.Groups[0]
	if g.Lead != "Add dark mode" || g.Phase != GroupPublished || g.Publish != pipeline.StatePublished {
		t.Errorf("group = %+v", g)
	}
	if len(g.Tasks) != 2 || g.Tasks[0].Status != TaskImplemented || !g.Tasks[0].Committed {
		t.Errorf("tasks = %+v", g.Tasks)
	}
	if len(g.Transitions) != 1 || g.Transitions[0].To != GroupWorkspaceReady {
		t.Errorf("transitions = %+v", g.Transitions)
	}
}

func TestListReports(t *testing.T) {
	repoDir := t.TempDir()
	base := time.Date(2026, 8, 25, 1, 30, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		r := sampleReport(repoDir, id, base.Add(time.Duration(i)*time.Hour))
		if err := r.Save(); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	// Noise in the runs directory must be skipped, not fail the listing.
	runsDir := RunsDir(repoDir)
	if err := os.WriteFile(filepath.Join(runsDir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(runsDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(runsDir, "archive"), 0o755); err != nil {
		t.Fatal(err)
	}

	reports, err := ListReports(repoDir)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for i, want := range []string{"run-c", "run-b", "run-a"} {
		if reports[i].ID != want {
			t.Errorf("reports[%d].ID = %s, want %s", i, reports[i].ID, want)
		}
	}
}

func TestListReportsNoRuns(t *testing.T) {
	reports, err := ListReports(t.TempDir())
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if reports != nil {
		t.Errorf("got %v, want nil", reports)
	}
}

func TestLatestReport(t *testing.T) {
	repoDir := t.TempDir()

	latest, err := LatestReport(repoDir)
	if err != nil || latest != nil {
		t.Fatalf("empty repository: report %v, err %v", latest, err)
	}

	base := time.Date(2026, 8, 25, 1, 30, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		r := sampleReport(repoDir, id, base.Add(time.Duration(i)*time.Hour))
		if err := r.Save(); err != nil {
			t.Fatal(err)
		}
	}

	latest, err = LatestReport(repoDir)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.ID != "run-b" {
		t.Errorf("latest = %s, want run-b", latest.ID)
	}
}

func TestPruneReports(t *testing.T) {
	repoDir := t.TempDir()
	now := time.Now()

	old := sampleReport(repoDir, "old-finished", now.Add(-49*time.Hour))
	if err := old.Save(); err != nil {
		t.Fatal(err)
	}

	// An unfinished report falls back to its start time for the age check.
	unfinished := sampleReport(repoDir, "old-unfinished", now.Add(-48*time.Hour))
	unfinished.FinishedAt = time.Time{}
	if err := unfinished.Save(); err != nil {
		t.Fatal(err)
	}

	recent := sampleReport(repoDir, "recent", now.Add(-time.Hour))
	if err := recent.Save(); err != nil {
		t.Fatal(err)
	}

	removed, err := PruneReports(repoDir, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneReports: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	reports, err := ListReports(repoDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].ID != "recent" {
		t.Errorf("remaining = %+v", reports)
	}
}

func TestTally(t *testing.T) {
	r := &RunReport{Groups: []GroupReport{
		{Phase: GroupPublished, Publish: pipeline.StatePublished},
		{Phase: GroupPublished, Publish: pipeline.StatePublished},
		{Phase: GroupPublished, Publish: pipeline.StateLocalOnly},
		{Phase: GroupFailed, Publish: pipeline.StatePushFailed},
		{Phase: GroupFailed},
	}}

	published, localOnly, failed := r.Tally()
	if published != 2 || localOnly != 1 || failed != 2 {
		t.Errorf("Tally() = %d, %d, %d, want 2, 1, 2", published, localOnly, failed)
	}
}
