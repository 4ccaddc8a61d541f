package workflow

import (
	"context"
	"time"

	"letterpod/internal/stage"
)

const probeTimeout = 5 * time.Second

// Status reports the current state, the last run, and collaborator health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		State:      m.state,
		CurrentRun: m.current,
	}
	if m.last != nil {
		last := *m.last
		summary.LastRun = &last
	}
	m.mu.RUnlock()

	summary.Health = stage.Evaluate(ctx, probeTimeout, m.c.Probes...)
	return summary
}

// LastRun returns the most recent finished run, if any.
func (m *Manager) LastRun() (RunSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return RunSummary{}, false
	}
	return *m.last, true
}
