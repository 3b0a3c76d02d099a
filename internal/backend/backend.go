// Package backend dispatches implementation work to a code-generation CLI.
// Variants differ only in how the prompt is delivered (argument vs stdin),
// which flags grant or deny tool access, and whether the CLI takes an
// explicit model parameter. Everything else (availability probing, one-shot
// execution, output capture, the marker-file fallback) is shared by the
// Dispatcher.
package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nightshift-labs/nightshift/internal/errors"
)

// RunOptions carries the per-invocation parameters a variant turns into
// command-line arguments.
type RunOptions struct {
	// Prompt is the full implementation prompt. Variants that deliver the
	// prompt on stdin ignore it here; the Dispatcher feeds it to the process.
	Prompt string

	// Model selects the model, for variants that accept one.
	Model string

	// AllowedTools and DeniedTools gate what the backend may touch, in the
	// variant's own tool-naming scheme.
	AllowedTools []string
	DeniedTools  []string
}

// Backend describes one code-generation CLI variant.
type Backend interface {
	// Name is the registry key, e.g. "claude".
	Name() string

	// Command is the default executable name. Configuration may override it.
	Command() string

	// Args builds the argument list for a one-shot, non-interactive run.
	Args(opts RunOptions) []string

	// PromptViaStdin reports whether the prompt is fed to the process's
	// stdin instead of being placed in Args.
	PromptViaStdin() bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register adds a backend variant to the lookup table. It panics on a
// duplicate name; registration happens from init functions and a collision
// is a programming error.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := strings.ToLower(b.Name())
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("backend %q registered twice", name))
	}
	registry[name] = b
}

// Lookup returns the backend registered under kind (case-insensitive).
func Lookup(kind string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	b, ok := registry[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)",
			errors.ErrBackendUnknown, kind, strings.Join(kindsLocked(), ", "))
	}
	return b, nil
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return kindsLocked()
}

func kindsLocked() []string {
	kinds := make([]string, 0, len(registry))
	for name := range registry {
		kinds = append(kinds, name)
	}
	sort.Strings(kinds)
	return kinds
}
