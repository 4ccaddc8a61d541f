// Package config loads, normalizes, and validates letterpod configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, loads an optional .env file, and honours environment fallbacks
// such as OPENROUTER_API_KEY and GMAIL_REFRESH_TOKEN. Credential values may
// reference AWS SSM parameters with an "ssm:" prefix; ResolveSecrets swaps
// them for the stored values once a resolver is available.
//
// Validation errors carry services.ErrConfiguration so callers can surface
// them as configuration problems rather than pipeline failures.
package config
