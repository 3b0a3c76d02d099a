package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nightshift-labs/nightshift/internal/pipeline"
)

// NewRunID returns the identifier shared by everything one run produces:
// log fields, report files, and nothing else.
func NewRunID() string {
	return uuid.NewString()
}

// RunsDir returns the directory holding a repository's run reports.
func RunsDir(repoDir string) string {
	return filepath.Join(repoDir, ".nightshift", "runs")
}

// ReportPath returns the report file for one run in one repository.
func ReportPath(repoDir, runID string) string {
	return filepath.Join(RunsDir(repoDir), runID+".json")
}

// LockPath returns the lock file guarding a repository against overlapping
// runs.
func LockPath(repoDir string) string {
	return filepath.Join(repoDir, ".nightshift", "run.lock")
}

// TaskStatus is the outcome of one checklist task.
type TaskStatus string

const (
	// TaskImplemented means the backend ran and exited zero.
	TaskImplemented TaskStatus = "implemented"

	// TaskMarker means no backend was available and a pending-task marker
	// was written instead.
	TaskMarker TaskStatus = "marker"

	// TaskFailed means the backend or the commit step failed on this task.
	TaskFailed TaskStatus = "failed"

	// TaskSkipped means an earlier task in the group failed first.
	TaskSkipped TaskStatus = "skipped"
)

// TaskReport records what happened to one checklist task.
type TaskReport struct {
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Committed bool       `json:"committed,omitempty"`
	Marker    string     `json:"marker,omitempty"`
}

// GroupReport records the outcome of one task group.
type GroupReport struct {
	Lead        string         `json:"lead"`
	Branch      string         `json:"branch,omitempty"`
	Workspace   string         `json:"workspace,omitempty"`
	Phase       GroupPhase     `json:"phase"`
	Publish     pipeline.State `json:"publish_state,omitempty"`
	PullRequest string         `json:"pull_request,omitempty"`
	Commits     int            `json:"commits"`
	Error       string         `json:"error,omitempty"`
	Tasks       []TaskReport   `json:"tasks,omitempty"`
	Transitions []Transition   `json:"transitions,omitempty"`
}

// RunReport is one repository's slice of a run, saved under that repository's
// .nightshift/runs directory as soon as the repository finishes. Reports from
// the same run share the run ID across repositories.
type RunReport struct {
	ID         string        `json:"id"`
	Repo       string        `json:"repo"`
	TasksFile  string        `json:"tasks_file,omitempty"`
	Backend    string        `json:"backend,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Groups     []GroupReport `json:"groups,omitempty"`

	// Error is set for repository-level failures: unreadable checklist,
	// missing repository, or the error that aborted the run here.
	Error string `json:"error,omitempty"`
}

// Tally counts this report's group outcomes.
func (r *RunReport) Tally() (published, localOnly, failed int) {
	for _, g := range r.Groups {
		switch {
		case g.Phase == GroupFailed:
			failed++
		case g.Publish == pipeline.StatePublished:
			published++
		default:
			localOnly++
		}
	}
	return published, localOnly, failed
}

// Save writes the report under its repository's runs directory.
func (r *RunReport) Save() error {
	dir := RunsDir(r.Repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}

	if err := os.WriteFile(ReportPath(r.Repo, r.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

// LoadReport reads one run's report from a repository.
func LoadReport(repoDir, runID string) (*RunReport, error) {
	data, err := os.ReadFile(ReportPath(repoDir, runID))
	if err != nil {
		return nil, fmt.Errorf("reading run report: %w", err)
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing run report: %w", err)
	}
	return &r, nil
}

// ListReports returns a repository's saved reports, newest first. Files that
// do not parse are skipped rather than failing the listing.
func ListReports(repoDir string) ([]*RunReport, error) {
	entries, err := os.ReadDir(RunsDir(repoDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var reports []*RunReport
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		r, err := LoadReport(repoDir, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		reports = append(reports, r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}

// LatestReport returns the most recently started report, or nil when the
// repository has none.
func LatestReport(repoDir string) (*RunReport, error) {
	reports, err := ListReports(repoDir)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return reports[0], nil
}

// PruneReports removes reports older than maxAge and returns how many were
// removed.
func PruneReports(repoDir string, maxAge time.Duration) (int, error) {
	reports, err := ListReports(repoDir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, r := range reports {
		at := r.FinishedAt
		if at.IsZero() {
			at = r.StartedAt
		}
		if at.Before(cutoff) {
			if err := os.Remove(ReportPath(repoDir, r.ID)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
