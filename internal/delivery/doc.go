// Package delivery sends the episode, or its degraded substitute, to the
// recipient.
//
// The rendered artifact is attached when it fits under the mail transport's
// attachment ceiling. When it does not, either by the local size check or
// because the transport rejects it, the artifact is uploaded to the
// large-object store and a link is mailed instead, producing a LinkOnly
// result. Every degraded message carries a note naming the degradation.
package delivery
