// Package logging assembles structured slog loggers and formatting helpers used
// across letterpod.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline stages automatically tag log
// lines with run IDs, stage names, and correlation IDs. A configured log
// directory receives a JSON copy of every record through a tee handler.
//
// NewNop and Recorder cover tests and wiring code that cannot fail.
package logging
