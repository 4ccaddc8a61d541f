// Package state commits run outcomes to the mailbox's labels, the only
// durable record of which newsletters were already processed.
//
// Tracker reads labels through a narrow LabelStore so tests can simulate
// races and crashes. Commit is idempotent: documents already in their final
// label state are skipped, so a repeated commit writes nothing.
package state
