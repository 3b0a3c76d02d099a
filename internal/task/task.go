// Package task parses hierarchical markdown checklists into ordered task
// records and groups them into units of work. Each group maps to exactly one
// workspace, branch, and pull request downstream.
package task

// Task is one unchecked checklist line.
type Task struct {
	// Title is the task text with any specification link collapsed to its
	// display text. Never empty after parsing.
	Title string

	// SpecLink is the target of the task's specification link, if the line
	// carried one. Relative paths are resolved against the repository root
	// by the specification loader.
	SpecLink string

	// Depth is the nesting level: 0 for top-level tasks, >0 for subtasks.
	Depth int

	// SourceOrder preserves document order across parsing strategies.
	SourceOrder int
}

// Group is one top-level task plus all subtasks that follow it, up to the
// next top-level task.
type Group struct {
	Lead    Task
	Members []Task

	// Promoted marks a group whose lead was a subtask appearing before any
	// top-level task. The input was malformed; callers log it and carry on.
	Promoted bool
}

// Tasks returns the lead task followed by its members, in source order.
func (g Group) Tasks() []Task {
	out := make([]Task, 0, len(g.Members)+1)
	out = append(out, g.Lead)
	return append(out, g.Members...)
}

// Titles returns every task title in the group, lead first.
func (g Group) Titles() []string {
	titles := make([]string, 0, len(g.Members)+1)
	titles = append(titles, g.Lead.Title)
	for _, m := range g.Members {
		titles = append(titles, m.Title)
	}
	return titles
}

// GroupTasks splits an ordered task sequence into groups, one per top-level
// task. Subtasks attach to the most recent group. A subtask appearing before
// any top-level task starts its own group with Promoted set, and later
// subtasks attach to it as usual, so grouping an already-flattened group
// sequence reproduces the same groups.
func GroupTasks(tasks []Task) []Group {
	var groups []Group
	for _, t := range tasks {
		if t.Depth == 0 || len(groups) == 0 {
			groups = append(groups, Group{Lead: t, Promoted: t.Depth > 0})
			continue
		}
		g := &groups[len(groups)-1]
		g.Members = append(g.Members, t)
	}
	return groups
}

// Flatten concatenates the tasks of every group back into one ordered
// sequence.
func Flatten(groups []Group) []Task {
	var tasks []Task
	for _, g := range groups {
		tasks = append(tasks, g.Tasks()...)
	}
	return tasks
}
