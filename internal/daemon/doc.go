// Package daemon runs letterpod as a long-lived service.
//
// It holds a flock so only one daemon runs per host, fires the pipeline on a
// cron schedule, and serves the HTTP API. Scheduled ticks that land while a
// run is still active are skipped rather than queued. Pipeline logic stays in
// the workflow package; the daemon only owns startup, shutdown, and
// triggering.
package daemon
