// Package budget converts the episode duration target into per-document word
// budgets for the included newsletters.
package budget
