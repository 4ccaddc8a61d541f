// Package preflight provides readiness checks for the services and paths
// letterpod depends on.
//
// These checks run in two contexts:
//   - "letterpod doctor" runs RunAll and prints every result.
//   - The daemon status endpoint reuses the same probes as stage health.
//
// Probes are built by the caller from live clients so this package does not
// need to know how each collaborator authenticates.
package preflight
