package workflow

import (
	"context"
	"errors"
	"time"

	"letterpod/internal/events"
	"letterpod/internal/logging"
	"letterpod/internal/notifications"
)

const eventPublishTimeout = 10 * time.Second

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.c.Notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WithContext(ctx, m.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

// publishEvent records the finished run on the event bus. It runs after the
// run context may have been canceled.
func (m *Manager) publishEvent(ctx context.Context, summary RunSummary) {
	if m.c.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := m.c.Events.PublishRun(pubCtx, runEvent(summary, m.opts.DryRun)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "run event not published", "run_event_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check kafka brokers and topic"),
			logging.String(logging.FieldImpact, "downstream consumers miss this run"),
		)
	}
}

func runEvent(s RunSummary, dryRun bool) events.RunEvent {
	return events.RunEvent{
		RunID:        s.RunID,
		Trigger:      s.Trigger,
		Status:       string(s.Status),
		Outcome:      string(s.Outcome),
		Stage:        string(s.FailedStage),
		FailureClass: s.FailureClass,
		Error:        s.Error,
		Included:     len(s.Included),
		Overflow:     len(s.Overflow),
		Excluded:     len(s.Excluded),
		Words:        s.Words,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		DryRun:       dryRun,
	}
}
