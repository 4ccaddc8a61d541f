// Package script assembles the narration script for one episode.
//
// The assembler renders a single prompt from the budgeted inclusion set and
// makes one generation call per attempt; replies are never stitched together
// across calls. A reply is accepted once it has a distinct opening and
// closing paragraph. Length drift outside ±15% of the target and subjects the
// script never mentions are logged as quality signals but do not fail the
// run. When generation keeps failing the error is promoted to a fatal
// pipeline error because no degraded substitute exists for the script.
package script
