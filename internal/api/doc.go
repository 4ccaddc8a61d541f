// Package api exposes the pipeline over HTTP and defines its wire types.
//
// # Routes
//
// POST /api/runs triggers a run in the background. It answers 202 when the
// run was started and 409 when one is already active.
//
// GET /api/status reports whether a run is active, the current stage, the
// last finished run, and collaborator health.
//
// GET /api/runs/last returns the last finished run with per-document records.
//
// GET /healthz is an unauthenticated liveness probe.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Stage names, statuses, and artifact kinds are
// exposed as the lowercase strings used in logs. Timestamps use RFC3339 with
// milliseconds. When a token is configured every /api route requires
// "Authorization: Bearer <token>".
package api
