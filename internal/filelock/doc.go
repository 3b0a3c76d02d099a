// Package filelock provides an exclusive on-disk lock that guards a
// repository against overlapping runs.
//
// Cron has no memory: a run that outlasts its schedule interval gets a second
// invocation started on top of it, and two processes mutating the same
// repository's worktrees corrupt both. Each run acquires the repository's
// lock file before touching it and releases the lock when the repository is
// done.
//
// The lock is advisory between cooperating processes, not an OS-level flock.
// Acquisition creates the file with O_EXCL and records the owning process; a
// crashed run leaves its file behind, and the next acquisition steals the
// lock once the recorded process is gone.
//
// # Usage
//
//	lock, err := filelock.Acquire(path)
//	if err != nil {
//		// errors.Is(err, filelock.ErrLocked) when another live run holds it
//	}
//	defer lock.Release()
package filelock
