// Package app wires configuration into a runnable pipeline: it loads and
// resolves config, constructs every external client, and hands the
// workflow manager to the CLI, the daemon, and the Lambda entry point.
package app
