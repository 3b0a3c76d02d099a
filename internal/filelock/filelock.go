package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("lock held by another process")

// Owner identifies the process a lock file was written by.
type Owner struct {
	PID     int       `json:"pid"`
	Host    string    `json:"host"`
	Started time.Time `json:"started"`
}

// HeldError reports an acquisition refused because the lock is live.
type HeldError struct {
	Path   string
	Holder Owner
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("another run (pid %d on %s, started %s) holds %s",
		e.Holder.PID, e.Holder.Host, e.Holder.Started.Format(time.RFC3339), e.Path)
}

func (e *HeldError) Unwrap() error { return ErrLocked }

// Lock is a held lock file. Release it when the guarded work is done.
type Lock struct {
	path  string
	owner Owner
}

// Acquire takes the lock at path, creating parent directories as needed.
// A lock file whose recorded process is no longer alive is treated as the
// leftover of a crashed run and stolen. Returns a *HeldError wrapping
// ErrLocked when a live process owns the lock.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	owner := Owner{PID: os.Getpid(), Host: hostname(), Started: time.Now().UTC()}
	data, err := json.Marshal(owner)
	if err != nil {
		return nil, fmt.Errorf("encoding lock owner: %w", err)
	}

	// One steal attempt at most: the second O_EXCL failure means a live
	// contender, not a stale file.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, werr := f.Write(data); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", cerr)
			}
			return &Lock{path: path, owner: owner}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		holder, herr := readOwner(path)
		if herr == nil && holder.alive() {
			return nil, &HeldError{Path: path, Holder: holder}
		}

		// Stale or unreadable: steal it. The steal is best-effort; the
		// lock stays advisory.
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("removing stale lock file: %w", rerr)
		}
	}
	return nil, fmt.Errorf("lock at %s: %w", path, ErrLocked)
}

// Release removes the lock file. Releasing an already-removed lock is not an
// error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Owner returns the identity recorded in the lock file.
func (l *Lock) Owner() Owner { return l.owner }

func readOwner(path string) (Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}
	var o Owner
	if err := json.Unmarshal(data, &o); err != nil {
		return Owner{}, err
	}
	if o.PID <= 0 {
		return Owner{}, fmt.Errorf("lock file records no pid")
	}
	return o, nil
}

// alive reports whether the recorded process still exists. A lock written on
// another host cannot be probed and is assumed live.
func (o Owner) alive() bool {
	if o.Host != "" && o.Host != hostname() {
		return true
	}
	proc, err := os.FindProcess(o.PID)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
