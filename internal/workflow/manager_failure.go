package workflow

import (
	"context"
	"errors"

	"letterpod/internal/logging"
	"letterpod/internal/notifications"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

// fail records a failed run. Processed labels are never touched here, so the
// fetched newsletters stay eligible for the next run.
func (m *Manager) fail(ctx context.Context, r *run, err error) {
	failedAt := r.failedStage
	if failedAt == "" {
		failedAt = m.currentState()
	}
	kind := services.Classify(err)
	class := services.FailureClass(err)

	r.summary.Status = RunFailed
	if kind == services.KindConflict {
		r.summary.Status = RunConflict
	}
	r.summary.FailedStage = failedAt
	r.summary.FailureClass = class
	r.summary.Error = err.Error()
	if r.ledger != nil {
		r.ledger.MarkFailed(class)
	}
	m.forceState(stage.Failed)

	logger := logging.WithContext(services.WithStage(ctx, string(failedAt)), m.logger)
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.Alert("stage_failure"),
		logging.String("failure_kind", string(kind)),
		logging.String("failure_class", class),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, failureHint(kind)),
		logging.String(logging.FieldImpact, "no newsletters were marked processed; the next run retries them"),
	)

	canceled := errors.Is(err, context.Canceled) || ctx.Err() != nil
	if kind != services.KindConflict && !canceled && !m.opts.DryRun {
		if sendErr := m.c.Delivery.SendFailure(ctx, err); sendErr != nil {
			logging.WarnWithContext(logger, "failure notice not sent", "failure_notice_failed",
				logging.Error(sendErr),
				logging.String(logging.FieldErrorHint, "check mail credentials and connectivity"),
				logging.String(logging.FieldImpact, "recipient is not told about this failure"),
			)
		}
	}

	m.notify(ctx, notifications.EventRunFailed, notifications.Payload{
		"stage": string(failedAt),
		"class": class,
		"error": err.Error(),
	})
}

func failureHint(kind services.Kind) string {
	switch kind {
	case services.KindTransient:
		return "an external service stayed unavailable after retries; check connectivity and provider status"
	case services.KindMalformed:
		return "an external service kept returning unusable output; check the model and prompt settings"
	case services.KindConstraint:
		return "a size or format limit was exceeded; check attachment and object store settings"
	case services.KindConflict:
		return "runs overlapped; check the schedule and run lock backend"
	default:
		return "check configuration and credentials with letterpod doctor"
	}
}

