package prioritizer

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/textutil"
)

const defaultDuplicateThreshold = 0.92

// Options bounds the inclusion set.
type Options struct {
	MaxDocuments int
	// MaxTotalChars caps the summed prompt body size; zero disables it.
	MaxTotalChars int
	// BodyCharLimit is the per-document truncation applied in the prompt and
	// is what MaxTotalChars counts.
	BodyCharLimit      int
	DuplicateThreshold float64
}

// Prioritizer ranks documents and splits them into included, excluded, and
// overflow lists.
type Prioritizer struct {
	opts       Options
	classifier Classifier
	logger     *slog.Logger
}

// New constructs a Prioritizer. A nil classifier uses the keyword classifier.
func New(opts Options, classifier Classifier, logger *slog.Logger) *Prioritizer {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = 10
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = defaultDuplicateThreshold
	}
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Prioritizer{opts: opts, classifier: classifier, logger: logging.NewComponentLogger(logger, "prioritizer")}
}

// Prioritize never mutates docs. Every input document appears exactly once in
// the returned selection; repeated ids are collapsed to their first occurrence.
func (p *Prioritizer) Prioritize(docs []newsletter.Document) newsletter.Selection {
	var sel newsletter.Selection
	if len(docs) == 0 {
		return sel
	}

	seen := make(map[string]struct{}, len(docs))
	ranked := make([]newsletter.Ranked, 0, len(docs))
	for _, doc := range docs {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		seen[doc.ID] = struct{}{}
		if strings.TrimSpace(doc.Body) == "" {
			sel.Excluded = append(sel.Excluded, newsletter.Exclusion{Document: doc, Reason: newsletter.ExcludeEmptyBody})
			continue
		}
		rank, signals := p.classifier.Classify(doc)
		ranked = append(ranked, newsletter.Ranked{Document: doc, Rank: rank, Signals: signals})
	}

	slices.SortStableFunc(ranked, compareRanked)
	ranked, dupes := p.dropDuplicates(ranked)
	sel.Excluded = append(sel.Excluded, dupes...)

	total := 0
	for i, r := range ranked {
		size := p.promptChars(r.Document)
		full := len(sel.Included) >= p.opts.MaxDocuments
		overBudget := p.opts.MaxTotalChars > 0 && len(sel.Included) > 0 && total+size > p.opts.MaxTotalChars
		if full || overBudget {
			sel.Overflow = append(sel.Overflow, ranked[i:]...)
			break
		}
		total += size
		sel.Included = append(sel.Included, r)
	}

	p.logger.Info("documents prioritized",
		logging.String(logging.FieldEventType, "prioritized"),
		logging.Int("fetched", len(docs)),
		logging.Int("included", len(sel.Included)),
		logging.Int("excluded", len(sel.Excluded)),
		logging.Int("overflow", len(sel.Overflow)),
		logging.Int("prompt_chars", total),
	)
	return sel
}

// compareRanked is the total order: rank, newest first, sender, then id.
func compareRanked(a, b newsletter.Ranked) int {
	if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
		return c
	}
	if c := b.Document.Received.Compare(a.Document.Received); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(a.Document.Sender), strings.ToLower(b.Document.Sender)); c != 0 {
		return c
	}
	return cmp.Compare(a.Document.ID, b.Document.ID)
}

// dropDuplicates removes near-identical bodies, keeping the higher ranked
// copy. Bodies are weighted by IDF across the batch so shared footer text
// does not make unrelated issues look alike.
func (p *Prioritizer) dropDuplicates(ranked []newsletter.Ranked) ([]newsletter.Ranked, []newsletter.Exclusion) {
	if len(ranked) < 2 {
		return ranked, nil
	}
	texts := make([]string, len(ranked))
	for i, r := range ranked {
		texts[i] = r.Document.Subject + "\n" + r.Document.Body
	}
	prints := textutil.WeightBatch(texts)

	kept := make([]newsletter.Ranked, 0, len(ranked))
	keptPrints := make([]*textutil.Vector, 0, len(ranked))
	var dupes []newsletter.Exclusion
	for i, r := range ranked {
		duplicateOf := ""
		for j, fp := range keptPrints {
			if textutil.Cosine(prints[i], fp) >= p.opts.DuplicateThreshold {
				duplicateOf = kept[j].Document.ID
				break
			}
		}
		if duplicateOf != "" {
			dupes = append(dupes, newsletter.Exclusion{
				Document: r.Document,
				Reason:   newsletter.ExcludeDuplicate,
				Detail:   fmt.Sprintf("duplicate of %s", duplicateOf),
			})
			continue
		}
		kept = append(kept, r)
		keptPrints = append(keptPrints, prints[i])
	}
	return kept, dupes
}

func (p *Prioritizer) promptChars(doc newsletter.Document) int {
	n := len([]rune(doc.Body))
	if p.opts.BodyCharLimit > 0 && n > p.opts.BodyCharLimit {
		return p.opts.BodyCharLimit
	}
	return n
}
