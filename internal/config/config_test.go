package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Backend.Kind != "claude" {
		t.Errorf("Backend.Kind = %q, want %q", cfg.Backend.Kind, "claude")
	}
	if cfg.Backend.Required {
		t.Error("Backend.Required should be false by default")
	}
	if cfg.Backend.TimeoutMinutes != 30 {
		t.Errorf("Backend.TimeoutMinutes = %d, want 30", cfg.Backend.TimeoutMinutes)
	}

	if !cfg.Assist.Enabled {
		t.Error("Assist.Enabled should be true by default")
	}
	if cfg.Assist.Command != "claude" {
		t.Errorf("Assist.Command = %q, want %q", cfg.Assist.Command, "claude")
	}
	if cfg.Assist.TimeoutSeconds != 60 {
		t.Errorf("Assist.TimeoutSeconds = %d, want 60", cfg.Assist.TimeoutSeconds)
	}

	if cfg.Branch.Prefix != "nightshift" {
		t.Errorf("Branch.Prefix = %q, want %q", cfg.Branch.Prefix, "nightshift")
	}

	if cfg.Workspace.Dir != "" {
		t.Errorf("Workspace.Dir = %q, want empty", cfg.Workspace.Dir)
	}
	if cfg.Workspace.Preserve {
		t.Error("Workspace.Preserve should be false by default")
	}

	if !cfg.Publish.Enabled {
		t.Error("Publish.Enabled should be true by default")
	}
	if cfg.Publish.Forge != "gh" {
		t.Errorf("Publish.Forge = %q, want %q", cfg.Publish.Forge, "gh")
	}
	if cfg.Publish.Draft {
		t.Error("Publish.Draft should be false by default")
	}
	if cfg.Publish.SettleSeconds != 5 {
		t.Errorf("Publish.SettleSeconds = %d, want 5", cfg.Publish.SettleSeconds)
	}
	if cfg.Publish.CleanupLocalOnly {
		t.Error("Publish.CleanupLocalOnly should be false by default")
	}

	if cfg.Tasks.File != "TASKS.md" {
		t.Errorf("Tasks.File = %q, want %q", cfg.Tasks.File, "TASKS.md")
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want 10", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 5 {
		t.Errorf("Logging.MaxBackups = %d, want 5", cfg.Logging.MaxBackups)
	}
	if !cfg.Logging.Compress {
		t.Error("Logging.Compress should be true by default")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if errs := Default().Validate(); len(errs) > 0 {
		t.Errorf("Default() config should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestBackendConfig_Timeout(t *testing.T) {
	tests := []struct {
		minutes  int
		expected time.Duration
	}{
		{30, 30 * time.Minute},
		{1, time.Minute},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := BackendConfig{TimeoutMinutes: tt.minutes}
		if result := cfg.Timeout(); result != tt.expected {
			t.Errorf("Timeout() with %d minutes = %v, want %v", tt.minutes, result, tt.expected)
		}
	}
}

func TestAssistConfig_Timeout(t *testing.T) {
	cfg := AssistConfig{TimeoutSeconds: 45}
	if result := cfg.Timeout(); result != 45*time.Second {
		t.Errorf("Timeout() = %v, want %v", result, 45*time.Second)
	}
}

func TestPublishConfig_Settle(t *testing.T) {
	cfg := PublishConfig{SettleSeconds: 5}
	if result := cfg.Settle(); result != 5*time.Second {
		t.Errorf("Settle() = %v, want %v", result, 5*time.Second)
	}
}

func TestWorkspaceConfig_ResolveDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("cannot determine home dir: %v", err)
	}

	tests := []struct {
		name     string
		dir      string
		repoDir  string
		expected string
	}{
		{
			name:     "empty uses repo-relative default",
			dir:      "",
			repoDir:  "/repos/api",
			expected: filepath.Join("/repos/api", ".nightshift", "workspaces"),
		},
		{
			name:     "absolute path used as-is",
			dir:      "/var/nightshift/workspaces",
			repoDir:  "/repos/api",
			expected: "/var/nightshift/workspaces",
		},
		{
			name:     "relative path resolved against repo",
			dir:      "work",
			repoDir:  "/repos/api",
			expected: filepath.Join("/repos/api", "work"),
		},
		{
			name:     "tilde expands to home",
			dir:      "~/nightshift-work",
			repoDir:  "/repos/api",
			expected: filepath.Join(home, "nightshift-work"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WorkspaceConfig{Dir: tt.dir}
			if got := cfg.ResolveDir(tt.repoDir); got != tt.expected {
				t.Errorf("ResolveDir(%q) = %q, want %q", tt.repoDir, got, tt.expected)
			}
		})
	}
}

func TestLoggingConfig_ResolvePath(t *testing.T) {
	t.Run("explicit dir", func(t *testing.T) {
		cfg := LoggingConfig{Dir: "/var/log/ns"}
		expected := filepath.Join("/var/log/ns", "nightshift.log")
		if got := cfg.ResolvePath(); got != expected {
			t.Errorf("ResolvePath() = %q, want %q", got, expected)
		}
	})

	t.Run("empty dir falls back to state dir", func(t *testing.T) {
		cfg := LoggingConfig{}
		expected := filepath.Join(StateDir(), "nightshift.log")
		if got := cfg.ResolvePath(); got != expected {
			t.Errorf("ResolvePath() = %q, want %q", got, expected)
		}
	})
}

func TestManifestConfig_ResolvePath(t *testing.T) {
	t.Run("empty uses config dir default", func(t *testing.T) {
		cfg := ManifestConfig{}
		expected := filepath.Join(ConfigDir(), "repos.yaml")
		if got := cfg.ResolvePath(); got != expected {
			t.Errorf("ResolvePath() = %q, want %q", got, expected)
		}
	})

	t.Run("explicit path used as-is", func(t *testing.T) {
		cfg := ManifestConfig{Path: "/etc/nightshift/repos.yaml"}
		if got := cfg.ResolvePath(); got != "/etc/nightshift/repos.yaml" {
			t.Errorf("ResolvePath() = %q", got)
		}
	})
}

func TestConfigDir(t *testing.T) {
	t.Run("respects XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		expected := filepath.Join("/custom/config", "nightshift")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})

	t.Run("falls back to home config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("cannot determine home dir: %v", err)
		}
		expected := filepath.Join(home, ".config", "nightshift")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestStateDir(t *testing.T) {
	t.Run("respects XDG_STATE_HOME", func(t *testing.T) {
		t.Setenv("XDG_STATE_HOME", "/custom/state")

		expected := filepath.Join("/custom/state", "nightshift")
		if got := StateDir(); got != expected {
			t.Errorf("StateDir() = %q, want %q", got, expected)
		}
	})

	t.Run("falls back to home state", func(t *testing.T) {
		t.Setenv("XDG_STATE_HOME", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("cannot determine home dir: %v", err)
		}
		expected := filepath.Join(home, ".local", "state", "nightshift")
		if got := StateDir(); got != expected {
			t.Errorf("StateDir() = %q, want %q", got, expected)
		}
	})
}
