// Package prioritizer ranks fetched newsletters and selects the ones that fit
// a run.
//
// Documents are ranked time-sensitive, actionable, analysis, evergreen, then
// everything else, with ties broken by newest first and then sender name.
// Empty and near-duplicate documents are excluded with a reason. Anything
// past the count or prompt size ceiling becomes overflow, which the script
// lists as bonus topics.
package prioritizer
