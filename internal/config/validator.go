package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "publish.settle_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters. Prefixes must start
// with a letter and may contain alphanumerics, hyphens, and underscores.
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidForges returns the list of supported code-hosting clients.
func ValidForges() []string {
	return []string{"gh", "api"}
}

// Validate checks the Config for invalid values and returns every validation
// error found. Backend kind is deliberately not validated here: the backend
// registry owns the set of known kinds and reports unknown ones at run start.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateAssist()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validateWorkspace()...)
	errors = append(errors, c.validatePublish()...)
	errors = append(errors, c.validateTasks()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Backend.Kind) == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.kind",
			Value:   c.Backend.Kind,
			Message: "cannot be empty",
		})
	}

	if c.Backend.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout_minutes",
			Value:   c.Backend.TimeoutMinutes,
			Message: "must be non-negative (0 disables the limit)",
		})
	}

	// 24h upper bound keeps a wedged backend from eating multiple nights.
	const maxTimeoutMinutes = 1440
	if c.Backend.TimeoutMinutes > maxTimeoutMinutes {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout_minutes",
			Value:   c.Backend.TimeoutMinutes,
			Message: fmt.Sprintf("exceeds maximum of %d minutes", maxTimeoutMinutes),
		})
	}

	return errors
}

func (c *Config) validateAssist() []ValidationError {
	var errors []ValidationError

	if c.Assist.Enabled && strings.TrimSpace(c.Assist.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "assist.command",
			Value:   c.Assist.Command,
			Message: "cannot be empty when assist is enabled",
		})
	}

	if c.Assist.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "assist.timeout_seconds",
			Value:   c.Assist.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if c.Branch.Prefix == "" {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "cannot be empty",
		})
	} else if !branchPrefixRegex.MatchString(c.Branch.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must start with a letter and contain only alphanumeric characters, hyphens, or underscores",
		})
	}

	// Git branch names have practical length limits.
	const maxBranchPrefixLength = 50
	if len(c.Branch.Prefix) > maxBranchPrefixLength {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", maxBranchPrefixLength),
		})
	}

	return errors
}

func (c *Config) validateWorkspace() []ValidationError {
	var errors []ValidationError

	if c.Workspace.Dir != "" {
		path := c.Workspace.Dir

		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "workspace.dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "workspace.dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

func (c *Config) validatePublish() []ValidationError {
	var errors []ValidationError

	if c.Publish.Forge != "" && !slices.Contains(ValidForges(), c.Publish.Forge) {
		errors = append(errors, ValidationError{
			Field:   "publish.forge",
			Value:   c.Publish.Forge,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidForges(), ", ")),
		})
	}

	if c.Publish.SettleSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "publish.settle_seconds",
			Value:   c.Publish.SettleSeconds,
			Message: "must be non-negative",
		})
	}

	const maxSettleSeconds = 300
	if c.Publish.SettleSeconds > maxSettleSeconds {
		errors = append(errors, ValidationError{
			Field:   "publish.settle_seconds",
			Value:   c.Publish.SettleSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxSettleSeconds),
		})
	}

	for i, reviewer := range c.Publish.Reviewers.Default {
		if strings.TrimSpace(reviewer) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("publish.reviewers.default[%d]", i),
				Value:   reviewer,
				Message: "reviewer cannot be empty",
			})
		}
	}

	for pattern, reviewers := range c.Publish.Reviewers.ByPath {
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   "publish.reviewers.by_path",
				Value:   pattern,
				Message: "glob pattern cannot be empty",
			})
		}
		if len(reviewers) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("publish.reviewers.by_path[%s]", pattern),
				Value:   reviewers,
				Message: "at least one reviewer is required per pattern",
			})
		}
	}

	return errors
}

func (c *Config) validateTasks() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Tasks.File) == "" {
		errors = append(errors, ValidationError{
			Field:   "tasks.file",
			Value:   c.Tasks.File,
			Message: "cannot be empty",
		})
	}

	if strings.Contains(c.Tasks.File, "..") {
		errors = append(errors, ValidationError{
			Field:   "tasks.file",
			Value:   c.Tasks.File,
			Message: "cannot contain parent directory references (..)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
