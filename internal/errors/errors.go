// Package errors provides centralized error definitions and error handling
// utilities for the nightshift codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - GitError: errors from git operations (workspaces, branches, commits)
//   - BackendError: errors from code-generation backend dispatch
//   - PublishError: errors from pushing branches and opening pull requests
//   - RunError: errors from run orchestration
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewGitError("failed to create workspace", baseErr).
//		WithBranch("nightshift/add-auth-20260825-013000-9f2c")
//
//	// Semantic error
//	err := errors.NewNotFoundError("repository", "/srv/app")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrBackendUnavailable) { ... }
//
//	// Check for error types
//	var pubErr *errors.PublishError
//	if errors.As(err, &pubErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors carry a severity (Debug through Critical) and two behavior flags:
// Retryable for transient conditions, and UserFacing for messages safe to
// print verbatim.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that abort the whole run.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Workspace-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrWorkspaceNotFound indicates that a workspace could not be found.
	ErrWorkspaceNotFound = New("workspace not found")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrBranchCheckedOut indicates that a branch is already checked out in
	// another workspace.
	ErrBranchCheckedOut = New("branch is checked out in another workspace")
)

// Backend-related sentinel errors
var (
	// ErrBackendUnknown indicates that no backend is registered under the
	// configured identifier.
	ErrBackendUnknown = New("unknown backend")
	// ErrBackendUnavailable indicates that the backend executable is not
	// installed or not in PATH.
	ErrBackendUnavailable = New("backend executable not found")
	// ErrBackendRequired indicates that a backend explicitly required by
	// configuration is unavailable. This aborts the whole run.
	ErrBackendRequired = New("required backend is unavailable")
	// ErrBackendFailed indicates that an available backend exited non-zero.
	ErrBackendFailed = New("backend exited with an error")
)

// Pipeline-related sentinel errors
var (
	// ErrCommitFailed indicates that staging or committing changes failed.
	ErrCommitFailed = New("commit failed")
	// ErrPushFailed indicates that pushing the branch to the remote failed.
	// The local branch is preserved.
	ErrPushFailed = New("push failed")
	// ErrPublishPartial indicates that the branch was pushed but pull request
	// creation failed. Recovery is retrying the pull request, not the push.
	ErrPublishPartial = New("branch pushed but pull request creation failed")
)

// Forge-related sentinel errors
var (
	// ErrForgeNotInstalled indicates that the forge CLI is not installed.
	ErrForgeNotInstalled = New("forge CLI is not installed or not in PATH")
	// ErrForgeAuthRequired indicates that the forge requires authentication.
	ErrForgeAuthRequired = New("forge authentication required")
	// ErrForgeNoCommits indicates that the forge rejected the pull request
	// because the head branch has no commits beyond the base branch.
	ErrForgeNoCommits = New("no commits between base and head branch")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// NightshiftError is the base interface for all nightshift errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type NightshiftError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors from git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to create workspace", errors.ErrBranchExists)
//	err = err.WithBranch("nightshift/fix-1").WithWorkspace("/repo/.nightshift/workspaces/fix-1")
type GitError struct {
	baseError
	Branch     string
	Workspace  string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorkspace adds a workspace path to the error context.
func (e *GitError) WithWorkspace(path string) *GitError {
	e.Workspace = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Workspace != "" {
		parts = append(parts, fmt.Sprintf("workspace=%s", e.Workspace))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BackendError represents errors from code-generation backend dispatch.
//
// Example:
//
//	err := errors.NewBackendError("implementation failed", errors.ErrBackendFailed)
//	err = err.WithBackend("claude").WithTask("Add login page").WithExitCode(1)
type BackendError struct {
	baseError
	Backend    string
	Task       string
	ExitCode   int
	LogExcerpt string // Tail of the backend's captured output
}

// NewBackendError creates a new BackendError.
func NewBackendError(message string, cause error) *BackendError {
	return &BackendError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		ExitCode: -1, // -1 indicates not set
	}
}

// WithBackend adds the backend identifier to the error context.
func (e *BackendError) WithBackend(name string) *BackendError {
	e.Backend = name
	return e
}

// WithTask adds the task title to the error context.
func (e *BackendError) WithTask(title string) *BackendError {
	e.Task = title
	return e
}

// WithExitCode adds the backend process exit code to the error context.
func (e *BackendError) WithExitCode(code int) *BackendError {
	e.ExitCode = code
	return e
}

// WithLogExcerpt attaches the tail of the backend's output.
func (e *BackendError) WithLogExcerpt(excerpt string) *BackendError {
	e.LogExcerpt = strings.TrimSpace(excerpt)
	return e
}

// WithSeverity sets the error severity.
func (e *BackendError) WithSeverity(s Severity) *BackendError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *BackendError) WithRetryable(r bool) *BackendError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *BackendError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}

	prefix := "backend error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("backend error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.LogExcerpt != "" {
		msg = fmt.Sprintf("%s\nbackend output: %s", msg, e.LogExcerpt)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *BackendError) Is(target error) bool {
	if _, ok := target.(*BackendError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PublishError represents errors from pushing branches and opening pull
// requests. Stage distinguishes "push failed" from "pushed, pull request
// failed": the first is recovered by retrying the push, the second by
// retrying only the pull request.
//
// Example:
//
//	err := errors.NewPublishError("pull request creation failed", errors.ErrPublishPartial)
//	err = err.WithBranch("nightshift/fix-1").WithStage(errors.StagePullRequest)
type PublishError struct {
	baseError
	Branch string
	Remote string
	Stage  string
}

// Publish stages recorded on PublishError.
const (
	StagePush        = "push"
	StagePullRequest = "pull-request"
)

// NewPublishError creates a new PublishError. Publish failures are usually
// transient network or remote-indexing trouble, so they default to retryable.
func NewPublishError(message string, cause error) *PublishError {
	return &PublishError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithBranch adds the branch name to the error context.
func (e *PublishError) WithBranch(branch string) *PublishError {
	e.Branch = branch
	return e
}

// WithRemote adds the remote name or URL to the error context.
func (e *PublishError) WithRemote(remote string) *PublishError {
	e.Remote = remote
	return e
}

// WithStage records which publish stage failed.
func (e *PublishError) WithStage(stage string) *PublishError {
	e.Stage = stage
	return e
}

// WithSeverity sets the error severity.
func (e *PublishError) WithSeverity(s Severity) *PublishError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *PublishError) WithRetryable(r bool) *PublishError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PublishError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Remote != "" {
		parts = append(parts, fmt.Sprintf("remote=%s", e.Remote))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}

	prefix := "publish error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("publish error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PublishError) Is(target error) bool {
	if _, ok := target.(*PublishError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RunError represents errors from run orchestration.
//
// Example:
//
//	err := errors.NewRunError("group processing failed", cause)
//	err = err.WithRepo("/srv/app").WithGroup(2).WithPhase("implement")
type RunError struct {
	baseError
	Repo  string
	Group int
	Phase string
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Group: -1, // -1 indicates not set
	}
}

// WithRepo adds a repository path to the error context.
func (e *RunError) WithRepo(path string) *RunError {
	e.Repo = path
	return e
}

// WithGroup adds a task group index to the error context.
func (e *RunError) WithGroup(idx int) *RunError {
	e.Group = idx
	return e
}

// WithPhase adds a pipeline phase name to the error context.
func (e *RunError) WithPhase(phase string) *RunError {
	e.Phase = phase
	return e
}

// WithSeverity sets the error severity.
func (e *RunError) WithSeverity(s Severity) *RunError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.Repo != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repo))
	}
	if e.Group >= 0 {
		parts = append(parts, fmt.Sprintf("group=%d", e.Group))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}

	prefix := "run error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("run error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("repository", "/srv/app")
//	fmt.Println(err) // "repository '/srv/app' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("branch prefix cannot be empty")
//	err = err.WithField("branch.prefix").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for backend to finish", 30*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for backend to finish (timeout: 30m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing NightshiftError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    report.SuggestRetry(err)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var nsErr NightshiftError
	if As(err, &nsErr) {
		return nsErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end
// users without further sanitizing.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var nsErr NightshiftError
	if As(err, &nsErr) {
		return nsErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement NightshiftError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    // abort the run
//	case errors.SeverityError:
//	    log.Error("group failed", "error", err)
//	case errors.SeverityWarning:
//	    log.Warn("degraded", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var nsErr NightshiftError
	if As(err, &nsErr) {
		return nsErr.Severity()
	}

	return SeverityError
}

// AbortsRun returns true if the error must stop processing of all remaining
// task groups and repositories. Only critical errors qualify; everything else
// is contained to the group or repository it happened in.
func AbortsRun(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrBackendRequired) {
		return true
	}
	return GetSeverity(err) >= SeverityCritical
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to process repository")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to process repository %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
