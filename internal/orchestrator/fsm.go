package orchestrator

import (
	"slices"
	"time"

	"github.com/nightshift-labs/nightshift/internal/errors"
)

// GroupPhase is one stage in a task group's trip through a run.
type GroupPhase string

const (
	// GroupIdle is the initial phase, before any workspace exists.
	GroupIdle GroupPhase = "idle"

	// GroupWorkspaceReady means the group's worktree and branch exist.
	GroupWorkspaceReady GroupPhase = "workspace_ready"

	// GroupImplementing means tasks are being dispatched and committed.
	GroupImplementing GroupPhase = "implementing"

	// GroupCommitted means every task in the group was processed and the
	// branch holds whatever the backend produced.
	GroupCommitted GroupPhase = "committed"

	// GroupPublished means the publish step finished cleanly. The outcome
	// may still be local-only; that detail lives in the publish state.
	GroupPublished GroupPhase = "published"

	// GroupFailed means the group stopped early. Its workspace and branch
	// are preserved for recovery.
	GroupFailed GroupPhase = "failed"
)

// AllPhases returns the phases in lifecycle order.
func AllPhases() []GroupPhase {
	return []GroupPhase{
		GroupIdle,
		GroupWorkspaceReady,
		GroupImplementing,
		GroupCommitted,
		GroupPublished,
		GroupFailed,
	}
}

// String returns the phase name.
func (p GroupPhase) String() string { return string(p) }

// IsTerminal reports whether no transition can leave p.
func (p GroupPhase) IsTerminal() bool {
	return p == GroupPublished || p == GroupFailed
}

// ValidTransitions is the canonical group state machine. A commit before a
// workspace exists or a publish before a commit is simply not representable;
// any phase short of terminal can fail.
var ValidTransitions = map[GroupPhase][]GroupPhase{
	GroupIdle:           {GroupWorkspaceReady, GroupFailed},
	GroupWorkspaceReady: {GroupImplementing, GroupFailed},
	GroupImplementing:   {GroupCommitted, GroupFailed},
	GroupCommitted:      {GroupPublished, GroupFailed},

	// Terminal phases: no transitions out.
	GroupPublished: {},
	GroupFailed:    {},
}

// CanTransition reports whether from → to is an allowed transition.
func CanTransition(from, to GroupPhase) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// ErrInvalidTransition flags a transition the machine does not allow. Hitting
// it is a bug in the run loop, not a runtime condition.
var ErrInvalidTransition = errors.New("invalid group phase transition")

// TransitionError reports which transition was refused.
type TransitionError struct {
	From GroupPhase
	To   GroupPhase
}

func (e *TransitionError) Error() string {
	return "group phase transition from " + string(e.From) + " to " + string(e.To) + " is not allowed"
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Transition is one recorded phase change, kept as an audit trail in the run
// report.
type Transition struct {
	From      GroupPhase `json:"from"`
	To        GroupPhase `json:"to"`
	Timestamp time.Time  `json:"timestamp"`

	// Reason carries why a group failed; empty on forward transitions.
	Reason string `json:"reason,omitempty"`
}

// Machine walks one task group through its phases, refusing invalid
// transitions and recording every change it makes.
type Machine struct {
	phase   GroupPhase
	history []Transition
	now     func() time.Time
}

// NewMachine creates a Machine in GroupIdle.
func NewMachine() *Machine {
	return &Machine{phase: GroupIdle, now: time.Now}
}

// Phase returns the current phase.
func (m *Machine) Phase() GroupPhase { return m.phase }

// CanTransitionTo reports whether the machine may move to the given phase.
func (m *Machine) CanTransitionTo(to GroupPhase) bool {
	return CanTransition(m.phase, to)
}

// TransitionTo advances the machine, or returns a TransitionError wrapping
// ErrInvalidTransition.
func (m *Machine) TransitionTo(to GroupPhase) error {
	return m.transition(to, "")
}

// Fail moves the machine to GroupFailed, recording why.
func (m *Machine) Fail(reason string) error {
	return m.transition(GroupFailed, reason)
}

func (m *Machine) transition(to GroupPhase, reason string) error {
	if !CanTransition(m.phase, to) {
		return &TransitionError{From: m.phase, To: to}
	}
	m.history = append(m.history, Transition{
		From:      m.phase,
		To:        to,
		Timestamp: m.now(),
		Reason:    reason,
	})
	m.phase = to
	return nil
}

// History returns the transitions taken so far, oldest first.
func (m *Machine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}
