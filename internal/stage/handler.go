// Package stage names the pipeline states and the health contract the
// orchestrator reports for its collaborators.
package stage

import (
	"context"
	"time"
)

// Name is a pipeline state.
type Name string

const (
	Idle         Name = "idle"
	Fetching     Name = "fetching"
	Prioritizing Name = "prioritizing"
	Allocating   Name = "allocating"
	Assembling   Name = "assembling"
	Rendering    Name = "rendering"
	Delivering   Name = "delivering"
	Committing   Name = "committing"
	Failed       Name = "failed"
)

// Sequence is the happy-path order of one run.
var Sequence = []Name{Idle, Fetching, Prioritizing, Allocating, Assembling, Rendering, Delivering, Committing}

// Next returns the state after n on the happy path. Committing wraps to Idle.
func (n Name) Next() (Name, bool) {
	for i, s := range Sequence {
		if s != n {
			continue
		}
		if i == len(Sequence)-1 {
			return Idle, true
		}
		return Sequence[i+1], true
	}
	return "", false
}

// CanTransition reports whether the state machine allows from -> to.
// Besides the sequential path, any active state may fail. A run with no
// content skips to Delivering from Fetching or Allocating, and Delivering
// may finish without Committing when nothing was consumed. A dry run stops
// after Assembling.
func CanTransition(from, to Name) bool {
	if next, ok := from.Next(); ok && next == to {
		return true
	}
	switch {
	case to == Failed:
		return from != Idle && from != Failed
	case from == Failed:
		return to == Idle
	case to == Delivering:
		return from == Fetching || from == Allocating
	case to == Idle:
		return from == Delivering || from == Assembling
	}
	return false
}

// Probe checks one collaborator.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

// Evaluate runs every probe with a per-probe timeout.
func Evaluate(ctx context.Context, timeout time.Duration, probes ...Probe) []Health {
	out := make([]Health, 0, len(probes))
	for _, p := range probes {
		if p.Check == nil {
			out = append(out, Unhealthy(p.Name, "not configured"))
			continue
		}
		checkCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := p.Check(checkCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			out = append(out, Unhealthy(p.Name, err.Error()))
			continue
		}
		out = append(out, Healthy(p.Name))
	}
	return out
}
