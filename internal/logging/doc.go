// Package logging assembles structured slog loggers and formatting helpers used
// across shelver.
//
// It owns the console and JSON handlers, tees records into a size-rotated log
// file under the configured log directory, and exposes context-aware helpers
// so pipeline code can tag log lines with the run ID, worker, stage, and file
// being processed. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
