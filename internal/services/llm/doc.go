// Package llm provides an OpenRouter chat client used as the
// language-generation collaborator.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send one prompt, receive the script text.
// Client.HealthCheck: verify API key and model availability.
//
// # Errors
//
// The client never retries. Failures are classified with the services
// taxonomy so the caller's retry Policy can decide: HTTP 408/429/5xx and
// network failures are transient (with Retry-After honoured), 401/403 are
// configuration errors, empty or undecodable replies are malformed.
package llm
