// Package logging assembles structured slog loggers and formatting helpers used
// across reelgate services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (including rotating file output), and exposes context-aware helpers
// so engine code can automatically tag log lines with workflow IDs, stages, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
