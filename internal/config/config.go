package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/nightshift-labs/nightshift/internal/util"
)

// Config represents the complete nightshift configuration. It is loaded once
// at startup and passed explicitly to every component; nothing reads viper
// after Load returns.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Assist    AssistConfig    `mapstructure:"assist"`
	Branch    BranchConfig    `mapstructure:"branch"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
}

// BackendConfig selects and tunes the code-generation backend CLI.
type BackendConfig struct {
	// Kind names the backend to dispatch to (default: "claude").
	// Available kinds are defined by the backend registry.
	Kind string `mapstructure:"kind"`
	// Required aborts the whole run when the backend executable is missing.
	// When false, a missing backend degrades to marker-file placeholders.
	Required bool `mapstructure:"required"`
	// Command overrides the backend's default executable name. Useful for
	// pinned versions or wrapper scripts.
	Command string `mapstructure:"command"`
	// Model is passed through to backends that support model selection.
	Model string `mapstructure:"model"`
	// AllowedTools restricts which tools the backend may use, in the
	// backend's own tool-naming scheme.
	AllowedTools []string `mapstructure:"allowed_tools"`
	// DeniedTools blocks specific tools.
	DeniedTools []string `mapstructure:"denied_tools"`
	// TimeoutMinutes caps a single backend execution (0 = no limit).
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

// Timeout returns the backend execution timeout (0 means no limit).
func (c *BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// AssistConfig tunes the natural-language collaborator used for task
// extraction and commit message generation. Assist failures always degrade to
// deterministic fallbacks, so this never gates a run.
type AssistConfig struct {
	// Enabled turns the collaborator on (default: true). When false every
	// caller uses its deterministic fallback directly.
	Enabled bool `mapstructure:"enabled"`
	// Command is the CLI used for one-shot completions (default: "claude").
	Command string `mapstructure:"command"`
	// TimeoutSeconds caps a single completion call (default: 60).
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the assist call timeout.
func (c *AssistConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BranchConfig controls branch naming conventions.
type BranchConfig struct {
	// Prefix is the branch name prefix (default: "nightshift").
	// Branches are named <prefix>/<slug>-<timestamp>-<token>.
	Prefix string `mapstructure:"prefix"`
}

// WorkspaceConfig controls where per-task-group worktrees live.
type WorkspaceConfig struct {
	// Dir is the directory where worktrees are created. If empty, defaults
	// to ".nightshift/workspaces" relative to each repository root. Can be
	// absolute to keep worktrees outside the repository. Supports ~ expansion.
	Dir string `mapstructure:"dir"`
	// Preserve keeps workspaces on disk even after a successful publish.
	Preserve bool `mapstructure:"preserve"`
}

// ResolveDir returns the worktree directory for a repository, resolving the
// default, ~ expansion, and relative paths against the repository root.
func (w *WorkspaceConfig) ResolveDir(repoDir string) string {
	if w.Dir == "" {
		return filepath.Join(repoDir, ".nightshift", "workspaces")
	}

	path := util.ExpandHome(w.Dir)
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoDir, path)
	}
	return path
}

// PublishConfig controls pushing and pull request creation.
type PublishConfig struct {
	// Enabled turns publishing on (default: true). When false every group
	// stops after its commits, leaving local branches only.
	Enabled bool `mapstructure:"enabled"`
	// Forge selects the code-hosting client: "gh" (GitHub CLI) or "api"
	// (GitHub REST API). Default: "gh".
	Forge string `mapstructure:"forge"`
	// Draft creates pull requests as drafts.
	Draft bool `mapstructure:"draft"`
	// Labels are applied to every pull request.
	Labels []string `mapstructure:"labels"`
	// Reviewers configures automatic reviewer assignment.
	Reviewers ReviewerConfig `mapstructure:"reviewers"`
	// SettleSeconds is the pause between a successful push and PR creation,
	// giving the remote time to index the new branch (default: 5).
	SettleSeconds int `mapstructure:"settle_seconds"`
	// CleanupLocalOnly removes the workspace even when a group ends in the
	// committed-but-unpublished state (default: false, workspaces kept for
	// morning review).
	CleanupLocalOnly bool `mapstructure:"cleanup_local_only"`
	// Token is the API token for the "api" forge. Empty means read
	// $GITHUB_TOKEN at startup.
	Token string `mapstructure:"token"`
}

// Settle returns the push-to-PR settling interval.
func (p *PublishConfig) Settle() time.Duration {
	return time.Duration(p.SettleSeconds) * time.Second
}

// ReviewerConfig controls automatic reviewer assignment.
type ReviewerConfig struct {
	// Default reviewers to always request.
	Default []string `mapstructure:"default"`
	// ByPath maps file path glob patterns to reviewers.
	ByPath map[string][]string `mapstructure:"by_path"`
}

// TasksConfig controls task checklist discovery.
type TasksConfig struct {
	// File is the checklist path relative to each repository root
	// (default: "TASKS.md"). Manifest entries may override it per repo.
	File string `mapstructure:"file"`
}

// LoggingConfig controls the run log.
type LoggingConfig struct {
	// Enabled controls whether file logging is on (default: true). When
	// false, logs go to stderr only.
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info").
	Level string `mapstructure:"level"`
	// Dir is the log directory. Empty means the user state directory
	// (typically ~/.local/state/nightshift). Supports ~ expansion.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10).
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 5).
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: true).
	Compress bool `mapstructure:"compress"`
}

// ResolvePath returns the full path of the active log file.
func (l *LoggingConfig) ResolvePath() string {
	dir := l.Dir
	if dir == "" {
		dir = StateDir()
	} else {
		dir = util.ExpandHome(dir)
	}
	return filepath.Join(dir, "nightshift.log")
}

// ManifestConfig locates the repository manifest.
type ManifestConfig struct {
	// Path is the repos manifest location (default:
	// ~/.config/nightshift/repos.yaml). Supports ~ expansion.
	Path string `mapstructure:"path"`
}

// ResolvePath returns the manifest path with defaults and ~ applied.
func (m *ManifestConfig) ResolvePath() string {
	if m.Path == "" {
		return filepath.Join(ConfigDir(), "repos.yaml")
	}
	return util.ExpandHome(m.Path)
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:           "claude",
			Required:       false,
			Command:        "",
			Model:          "",
			AllowedTools:   []string{},
			DeniedTools:    []string{},
			TimeoutMinutes: 30,
		},
		Assist: AssistConfig{
			Enabled:        true,
			Command:        "claude",
			TimeoutSeconds: 60,
		},
		Branch: BranchConfig{
			Prefix: "nightshift",
		},
		Workspace: WorkspaceConfig{
			Dir:      "", // Empty means .nightshift/workspaces under each repo
			Preserve: false,
		},
		Publish: PublishConfig{
			Enabled: true,
			Forge:   "gh",
			Draft:   false,
			Labels:  []string{},
			Reviewers: ReviewerConfig{
				Default: []string{},
				ByPath:  map[string][]string{},
			},
			SettleSeconds:    5,
			CleanupLocalOnly: false,
			Token:            "",
		},
		Tasks: TasksConfig{
			File: "TASKS.md",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Compress:   true,
		},
		Manifest: ManifestConfig{
			Path: "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("backend.kind", defaults.Backend.Kind)
	viper.SetDefault("backend.required", defaults.Backend.Required)
	viper.SetDefault("backend.command", defaults.Backend.Command)
	viper.SetDefault("backend.model", defaults.Backend.Model)
	viper.SetDefault("backend.allowed_tools", defaults.Backend.AllowedTools)
	viper.SetDefault("backend.denied_tools", defaults.Backend.DeniedTools)
	viper.SetDefault("backend.timeout_minutes", defaults.Backend.TimeoutMinutes)

	viper.SetDefault("assist.enabled", defaults.Assist.Enabled)
	viper.SetDefault("assist.command", defaults.Assist.Command)
	viper.SetDefault("assist.timeout_seconds", defaults.Assist.TimeoutSeconds)

	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	viper.SetDefault("workspace.dir", defaults.Workspace.Dir)
	viper.SetDefault("workspace.preserve", defaults.Workspace.Preserve)

	viper.SetDefault("publish.enabled", defaults.Publish.Enabled)
	viper.SetDefault("publish.forge", defaults.Publish.Forge)
	viper.SetDefault("publish.draft", defaults.Publish.Draft)
	viper.SetDefault("publish.labels", defaults.Publish.Labels)
	viper.SetDefault("publish.reviewers.default", defaults.Publish.Reviewers.Default)
	viper.SetDefault("publish.reviewers.by_path", defaults.Publish.Reviewers.ByPath)
	viper.SetDefault("publish.settle_seconds", defaults.Publish.SettleSeconds)
	viper.SetDefault("publish.cleanup_local_only", defaults.Publish.CleanupLocalOnly)
	viper.SetDefault("publish.token", defaults.Publish.Token)

	viper.SetDefault("tasks.file", defaults.Tasks.File)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("manifest.path", defaults.Manifest.Path)
}

// Load reads the configuration from viper into a Config struct and validates
// it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nightshift")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nightshift"
	}
	return filepath.Join(home, ".config", "nightshift")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the path to the user's state directory, used for logs.
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "nightshift")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nightshift"
	}
	return filepath.Join(home, ".local", "state", "nightshift")
}
