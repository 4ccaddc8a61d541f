package workflow

import (
	"context"
	"fmt"
	"time"

	"letterpod/internal/logging"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

// transition moves the state machine, refusing moves it does not allow.
func (m *Manager) transition(to stage.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !stage.CanTransition(m.state, to) {
		return services.Fatal(string(to), fmt.Sprintf("invalid state transition %s -> %s", m.state, to), nil)
	}
	m.state = to
	return nil
}

// forceState is used on the failure path, where the prior state may be
// anything.
func (m *Manager) forceState(to stage.Name) {
	m.mu.Lock()
	m.state = to
	m.mu.Unlock()
}

// runStage enters name, runs fn, and logs the stage boundaries. A canceled
// run stops here, between stages, without entering name.
func (m *Manager) runStage(ctx context.Context, r *run, name stage.Name, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		r.failedStage = name
		return err
	}
	if err := m.transition(name); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, string(name))
	logger := logging.WithContext(stageCtx, m.logger)
	started := m.now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := fn(stageCtx); err != nil {
		r.failedStage = name
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return nil
}
