// Package services defines shared utilities consumed by the pipeline stages
// and the external service adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, triggers, and
//     correlation identifiers for logging.
//   - The error taxonomy (transient, malformed, constraint, fatal) plus the
//     Wrap helper so every failure crossing a component boundary is already
//     classified.
//   - The retry Policy used for every external call, with per-attempt
//     timeouts and jittered exponential backoff.
//
// Adapters under services/ return errors wrapped with these markers; the
// workflow package decides retry vs degrade vs abort from Classify alone.
package services
