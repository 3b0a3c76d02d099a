// Package logging provides structured logging for nightshift runs.
//
// This package wraps Go's log/slog to produce JSON-formatted logs with
// context propagation support. An overnight run executes with nobody
// watching, so the log file is the primary record of what happened; the
// package is built around making that record filterable after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, repository, branch, task)
//   - Size-based rotation with numbered, optionally gzipped backups
//   - Log aggregation, filtering, and export to JSON, text, or CSV
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses slog internally, and the [RotatingWriter] type guards file operations
// with a mutex during rotation. Child loggers created via With* methods share
// the underlying writer safely.
//
// # Basic Usage
//
// Create a logger writing to a rotating file:
//
//	logger, err := logging.NewLogger(logPath, "INFO", logging.DefaultRotationConfig(), os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("run starting", "repos", 3)
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	runLogger := logger.WithRun("run-abc123")
//	repoLogger := runLogger.WithRepo("/home/ci/src/api")
//	groupLogger := repoLogger.WithBranch("nightshift/add-auth-20260825-031500-9f2c")
//
//	// All entries from groupLogger carry run_id, repo, and branch
//	groupLogger.Info("backend finished", "exit_code", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"backend finished","run_id":"run-abc123","repo":"/home/ci/src/api","branch":"nightshift/add-auth-20260825-031500-9f2c","exit_code":0}
//
// # Log Rotation
//
// Rotated files are named nightshift.log.1, nightshift.log.2, etc., where .1
// is the most recent backup. With compression enabled the backups become
// nightshift.log.1.gz, etc. Rotation settings come from the config file:
//
//	logging:
//	  enabled: true
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 5
//	  compress: true
//
// # Testing
//
// Use [NopLogger] to discard all output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger without creating files
//	}
//
// # Post-run Analysis
//
// Read and analyze logs after a run:
//
//	entries, err := logging.AggregateLogs(logPath)
//	if err != nil {
//	    return err
//	}
//
//	filter := logging.LogFilter{
//	    Level:     "WARN",
//	    Repo:      "/home/ci/src/api",
//	    StartTime: time.Now().Add(-12 * time.Hour),
//	}
//	filtered := logging.FilterLogs(entries, filter)
//
//	logging.ExportLogEntries(filtered, "failures.json", "json")
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: detailed information for debugging
//   - [LevelInfo]: general operational information (default)
//   - [LevelWarn]: conditions that degraded but did not stop a task group
//   - [LevelError]: failures that ended a task group or the run
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings.
package logging
