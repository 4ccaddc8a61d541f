package state

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/services"
)

const (
	DefaultSourceLabel    = "newsletters-to-podcast"
	DefaultProcessedLabel = "podcast-processed"
	DefaultDegradedLabel  = "podcast-degraded"
	unreadLabel           = "UNREAD"
)

// LabelStore reads and writes message labels by name.
type LabelStore interface {
	Labels(ctx context.Context, ids []string) (map[string][]string, error)
	Modify(ctx context.Context, ids []string, add, remove []string) error
}

// Options names the labels that encode processing state.
type Options struct {
	SourceLabel    string
	ProcessedLabel string
	DegradedLabel  string
	Policy         services.Policy
}

// Tracker commits processed documents and detects concurrent commits.
type Tracker struct {
	store  LabelStore
	opts   Options
	logger *slog.Logger
}

// New builds a Tracker with label defaults filled in.
func New(store LabelStore, opts Options, logger *slog.Logger) *Tracker {
	if opts.SourceLabel == "" {
		opts.SourceLabel = DefaultSourceLabel
	}
	if opts.ProcessedLabel == "" {
		opts.ProcessedLabel = DefaultProcessedLabel
	}
	if opts.DegradedLabel == "" {
		opts.DegradedLabel = DefaultDegradedLabel
	}
	return &Tracker{store: store, opts: opts, logger: logging.NewComponentLogger(logger, "state")}
}

// DegradedLabelFor names the label that records which downgrade produced the
// delivered artifact, such as "podcast-degraded-text" for text-only. It is
// empty for full audio.
func (t *Tracker) DegradedLabelFor(outcome newsletter.ArtifactKind) string {
	switch outcome {
	case newsletter.KindTextOnly:
		return t.opts.DegradedLabel + "-text"
	case newsletter.KindLinkOnly:
		return t.opts.DegradedLabel + "-link"
	default:
		return ""
	}
}

// Processed returns the ids that already carry the processed label.
func (t *Tracker) Processed(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	labels, err := services.Retry(ctx, t.opts.Policy, "read labels", func(ctx context.Context) (map[string][]string, error) {
		return t.store.Labels(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	var done []string
	for _, id := range ids {
		if hasLabel(labels[id], t.opts.ProcessedLabel) {
			done = append(done, id)
		}
	}
	return done, nil
}

// EnsureUnclaimed fails with ErrConflict when another run has already
// committed any of ids.
func (t *Tracker) EnsureUnclaimed(ctx context.Context, ids []string, checkpoint string) error {
	done, err := t.Processed(ctx, ids)
	if err != nil {
		return err
	}
	if len(done) == 0 {
		return nil
	}
	logging.WarnWithContext(t.logger, "documents already processed by another run", "commit_conflict",
		logging.String("checkpoint", checkpoint),
		logging.Strings("document_ids", done),
		logging.String(logging.FieldErrorHint, "overlapping runs; the other run delivered these newsletters"),
		logging.String(logging.FieldImpact, "this run aborts without delivering or committing"),
	)
	return services.Wrap(services.ErrConflict, checkpoint, "verify", strings.Join(done, ","), nil)
}

// Commit marks ids processed for outcome. Degraded outcomes also get the
// degraded label plus a per-kind label (DegradedLabelFor). Safe to repeat.
func (t *Tracker) Commit(ctx context.Context, ids []string, outcome newsletter.ArtifactKind) error {
	if len(ids) == 0 {
		return nil
	}
	add := []string{t.opts.ProcessedLabel}
	if outcome.Degraded() {
		add = append(add, t.opts.DegradedLabel, t.DegradedLabelFor(outcome))
	}
	remove := []string{unreadLabel, t.opts.SourceLabel}

	current, err := services.Retry(ctx, t.opts.Policy, "read labels", func(ctx context.Context) (map[string][]string, error) {
		return t.store.Labels(ctx, ids)
	})
	if err != nil {
		return err
	}
	var pending []string
	for _, id := range ids {
		labels, ok := current[id]
		if !ok {
			// Deleted from the mailbox since fetch; nothing to mark.
			continue
		}
		if !settled(labels, add, remove) {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		t.logger.Info("commit already applied",
			logging.String(logging.FieldEventType, "commit_noop"),
			logging.Int("documents", len(ids)),
		)
		return nil
	}

	if err := t.opts.Policy.Do(ctx, "commit labels", func(ctx context.Context) error {
		return t.store.Modify(ctx, pending, add, remove)
	}); err != nil {
		return err
	}
	t.logger.Info("documents committed",
		logging.String(logging.FieldEventType, "commit_applied"),
		logging.Int("documents", len(pending)),
		logging.String("outcome", string(outcome)),
		logging.Strings("labels_added", add),
	)
	return nil
}

func settled(labels, add, remove []string) bool {
	for _, want := range add {
		if !hasLabel(labels, want) {
			return false
		}
	}
	for _, unwanted := range remove {
		if hasLabel(labels, unwanted) {
			return false
		}
	}
	return true
}

func hasLabel(labels []string, name string) bool {
	return slices.ContainsFunc(labels, func(l string) bool { return strings.EqualFold(l, name) })
}
