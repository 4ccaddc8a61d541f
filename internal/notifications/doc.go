// Package notifications delivers run events to the operator via ntfy.
//
// The recipient's own emails are handled by the delivery package; this
// package is the operator channel. When no topic is configured, or an
// event's toggle is off, Publish is a no-op.
package notifications
