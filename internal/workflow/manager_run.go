package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/notifications"
	"letterpod/internal/runlock"
	"letterpod/internal/script"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

// run holds the working data of one pipeline run.
type run struct {
	summary     RunSummary
	ledger      *newsletter.Ledger
	logger      *slog.Logger
	failedStage stage.Name
}

// Run executes one pipeline run. The returned summary is complete, including
// FinishedAt and Records, even when the run fails; the error is nil for
// delivered, no-content, and dry runs.
func (m *Manager) Run(ctx context.Context, trigger string) (summary RunSummary, err error) {
	if trigger == "" {
		trigger = "manual"
	}
	runID := uuid.NewString()
	if !m.begin(runID) {
		return RunSummary{Trigger: trigger, Status: RunConflict, Error: ErrBusy.Error()}, ErrBusy
	}

	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithTrigger(ctx, trigger)
	r := &run{
		summary: RunSummary{
			RunID:       runID,
			Trigger:     trigger,
			TargetWords: m.opts.TargetWords,
			StartedAt:   m.now(),
		},
		logger: logging.WithContext(ctx, m.logger),
	}
	defer func() {
		r.summary.FinishedAt = m.now()
		if r.ledger != nil {
			r.summary.Records = r.ledger.Records()
		}
		m.finish(r.summary)
		m.publishEvent(ctx, r.summary)
		summary = r.summary
	}()

	if m.c.Lock != nil {
		if err := runlock.Acquire(ctx, m.c.Lock); err != nil {
			r.summary.Status = RunConflict
			if !errors.Is(err, services.ErrConflict) {
				r.summary.Status = RunFailed
			}
			r.summary.FailureClass = services.FailureClass(err)
			r.summary.Error = err.Error()
			logging.WarnWithContext(r.logger, "run lock unavailable", "run_lock_busy",
				logging.String("lock", m.c.Lock.Describe()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "another run is active; wait for it to finish"),
				logging.String(logging.FieldImpact, "this run was skipped"),
			)
			return r.summary, err
		}
		defer func() {
			if err := m.c.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("run lock release failed", logging.Error(err))
			}
		}()
	}

	r.logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Bool("dry_run", m.opts.DryRun),
		logging.Int("target_words", m.opts.TargetWords),
	)
	m.notify(ctx, notifications.EventRunStarted, notifications.Payload{"runID": runID, "trigger": trigger})

	if err := m.execute(ctx, r); err != nil {
		m.fail(ctx, r, err)
		return r.summary, err
	}
	r.logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(r.summary.Status)),
		logging.String("outcome", string(r.summary.Outcome)),
		logging.Int("included", len(r.summary.Included)),
		logging.Int("overflow", len(r.summary.Overflow)),
		logging.Int("excluded", len(r.summary.Excluded)),
		logging.Duration("run_duration", m.now().Sub(r.summary.StartedAt)),
	)
	return r.summary, nil
}

func (m *Manager) execute(ctx context.Context, r *run) error {
	var docs []newsletter.Document
	err := m.runStage(ctx, r, stage.Fetching, func(ctx context.Context) error {
		fetched, err := services.Retry(ctx, m.opts.Policy, "fetch newsletters", func(ctx context.Context) ([]newsletter.Document, error) {
			return m.c.Source.Fetch(ctx, m.opts.Window)
		})
		docs = fetched
		return err
	})
	if err != nil {
		return err
	}
	r.summary.Fetched = len(docs)
	r.ledger = newsletter.NewLedger(docs)
	if len(docs) == 0 {
		return m.noContent(ctx, r)
	}

	var sel newsletter.Selection
	err = m.runStage(ctx, r, stage.Prioritizing, func(ctx context.Context) error {
		sel = m.c.Prioritizer.Prioritize(docs)
		if err := r.ledger.ApplySelection(sel); err != nil {
			return services.Fatal(string(stage.Prioritizing), "apply selection", err)
		}
		r.summary.Included = ids(sel.Included)
		r.summary.Overflow = ids(sel.Overflow)
		r.summary.Excluded = sel.Excluded
		return nil
	})
	if err != nil {
		return err
	}

	var set newsletter.InclusionSet
	if err := m.runStage(ctx, r, stage.Allocating, func(ctx context.Context) error {
		set = m.c.Allocator.Allocate(sel.Included, sel.Overflow, m.opts.TargetWords)
		return nil
	}); err != nil {
		return err
	}
	if len(set.Items) == 0 {
		// Everything fetched was excluded. The exclusions stay uncommitted and
		// age out of the fetch window.
		return m.noContent(ctx, r)
	}

	var assembled script.Result
	if err := m.runStage(ctx, r, stage.Assembling, func(ctx context.Context) error {
		res, err := m.c.Assembler.Assemble(ctx, set)
		if err != nil {
			return err
		}
		assembled = res
		r.summary.Script = res.Script
		r.summary.Words = res.Words
		return nil
	}); err != nil {
		return err
	}
	if m.opts.DryRun {
		r.summary.Status = RunDryRun
		return m.transition(stage.Idle)
	}

	var result newsletter.RenderResult
	if err := m.runStage(ctx, r, stage.Rendering, func(ctx context.Context) error {
		res, err := m.c.Renderer.Render(ctx, assembled.Script)
		result = res
		return err
	}); err != nil {
		return err
	}

	if err := m.runStage(ctx, r, stage.Delivering, func(ctx context.Context) error {
		candidates := r.ledger.IDsIn(newsletter.StateIncluded, newsletter.StateExcluded)
		if err := m.c.Tracker.EnsureUnclaimed(ctx, candidates, string(stage.Delivering)); err != nil {
			return err
		}
		receipt, err := m.c.Delivery.Deliver(ctx, set, result)
		if err != nil {
			return err
		}
		result = receipt.Result
		r.ledger.MarkDelivered(result.Kind())
		r.summary.Outcome = result.Kind()
		r.summary.Subject = receipt.Subject
		if result.Kind().Degraded() {
			m.notify(ctx, notifications.EventDegraded, notifications.Payload{
				"outcome": string(result.Kind()),
				"reason":  degradedReason(result),
			})
		}
		return nil
	}); err != nil {
		return err
	}

	if err := m.runStage(ctx, r, stage.Committing, func(ctx context.Context) error {
		consumed := r.ledger.IDsIn(newsletter.StateDelivered, newsletter.StateExcluded)
		if err := m.c.Tracker.EnsureUnclaimed(ctx, consumed, string(stage.Committing)); err != nil {
			return err
		}
		return m.c.Tracker.Commit(ctx, consumed, result.Kind())
	}); err != nil {
		return err
	}
	if err := m.transition(stage.Idle); err != nil {
		return err
	}

	r.summary.Status = RunDelivered
	m.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"outcome":  string(result.Kind()),
		"included": len(r.summary.Included),
		"overflow": len(r.summary.Overflow),
		"duration": m.now().Sub(r.summary.StartedAt),
	})
	return nil
}

// noContent sends the no-content notice. Nothing is committed.
func (m *Manager) noContent(ctx context.Context, r *run) error {
	if err := m.runStage(ctx, r, stage.Delivering, func(ctx context.Context) error {
		if m.opts.DryRun {
			return nil
		}
		return m.c.Delivery.SendNoContent(ctx)
	}); err != nil {
		return err
	}
	r.summary.Status = RunNoContent
	r.logger.Info("no newsletters to narrate",
		logging.String(logging.FieldEventType, "no_content"),
		logging.Int("fetched", r.summary.Fetched),
		logging.Int("excluded", len(r.summary.Excluded)),
	)
	m.notify(ctx, notifications.EventNoContent, notifications.Payload{"runID": r.summary.RunID})
	return m.transition(stage.Idle)
}

func ids(ranked []newsletter.Ranked) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Document.ID)
	}
	return out
}

func degradedReason(result newsletter.RenderResult) string {
	switch res := result.(type) {
	case newsletter.TextOnly:
		return res.Reason
	case newsletter.LinkOnly:
		if res.Reason != "" {
			return res.Reason
		}
		return "artifact exceeded the email attachment limit"
	}
	return ""
}
