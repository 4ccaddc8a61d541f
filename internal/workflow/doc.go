// Package workflow runs the newsletter-to-podcast pipeline.
//
// Manager.Run drives one run through the stage state machine
// (fetching, prioritizing, allocating, assembling, rendering, delivering,
// committing) strictly in sequence. Every collaborator resolves its own
// transient failures and surfaces classified errors, so the manager only
// decides between continuing, taking the no-content branch, and failing.
//
// Commit happens only after delivery reports a terminal outcome. A failure
// or crash anywhere earlier leaves the mailbox labels untouched, so the next
// run fetches the same newsletters again. Before delivering and again before
// committing, the manager re-reads labels and aborts with a conflict when an
// overlapping run has already processed the documents.
package workflow
