package budget

import (
	"log/slog"
	"math"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
)

const (
	// DefaultWordsPerMinute is the narration rate used when none is configured.
	DefaultWordsPerMinute = 150

	minShare     = 0.90
	framingShare = 0.05
	bonusShare   = 0.01
	minDepth     = 150
	maxDepth     = 2500
	// sparseRatio marks a run thin when the source bodies together hold less
	// than this fraction of the target.
	sparseRatio = 0.5
)

var rankWeights = map[newsletter.Rank]float64{
	newsletter.RankTimeSensitive: 1.0,
	newsletter.RankActionable:    0.85,
	newsletter.RankAnalysis:      0.7,
	newsletter.RankEvergreen:     0.55,
	newsletter.RankOther:         0.4,
}

// TargetWords derives the global word target from a duration and a rate.
func TargetWords(minutes, wordsPerMinute int) int {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	if minutes <= 0 {
		return 0
	}
	return minutes * wordsPerMinute
}

// Allocator assigns word budgets.
type Allocator struct {
	logger *slog.Logger
}

// New returns an allocator.
func New(logger *slog.Logger) *Allocator {
	return &Allocator{logger: logging.NewComponentLogger(logger, "budget")}
}

// Allocate distributes between 90% and 100% of target across included, in
// order. Budgets never increase from one rank group to the next and are
// proportional to body length inside a group. Part of the target is held back
// for the opening, closing, and a sentence per overflow topic.
func (a *Allocator) Allocate(included, overflow []newsletter.Ranked, target int) newsletter.InclusionSet {
	set := newsletter.InclusionSet{
		Overflow:    overflow,
		TargetWords: target,
	}
	if len(included) == 0 || target <= 0 {
		set.Thin = true
		a.logger.Info("thin content, nothing to allocate",
			logging.String(logging.FieldEventType, "budget_thin"),
			logging.Int("target_words", target),
			logging.Int("overflow", len(overflow)),
		)
		return set
	}

	pool := distributable(target, len(overflow))
	weights := groupWeights(included)
	budgets := apportion(weights, pool)

	sourceWords := 0
	set.Items = make([]newsletter.Allocated, len(included))
	for i, r := range included {
		set.Items[i] = newsletter.Allocated{Ranked: r, Budget: budgets[i]}
		sourceWords += r.Document.WordCount()
	}
	if float64(sourceWords) < sparseRatio*float64(target) {
		set.Thin = true
	}

	a.logger.Info("word budgets allocated",
		logging.String(logging.FieldEventType, "budget_allocated"),
		logging.Int("target_words", target),
		logging.Int("allocated_words", set.TotalBudget()),
		logging.Int("documents", len(set.Items)),
		logging.Int("source_words", sourceWords),
		logging.Bool("thin", set.Thin),
	)
	return set
}

func distributable(target, overflow int) int {
	reserve := framingShare + bonusShare*float64(overflow)
	if reserve > 1-minShare {
		reserve = 1 - minShare
	}
	pool := int(math.Floor(float64(target) * (1 - reserve)))
	if floor := int(math.Ceil(float64(target) * minShare)); pool < floor {
		pool = floor
	}
	if pool > target {
		pool = target
	}
	return pool
}

// groupWeights weights each document by rank and clamped body length, then
// scales whole rank groups down so no document outweighs one in an earlier
// group. Uniform scaling keeps the within-group proportions.
func groupWeights(included []newsletter.Ranked) []float64 {
	weights := make([]float64, len(included))
	for i, r := range included {
		depth := float64(r.Document.WordCount())
		depth = math.Max(minDepth, math.Min(maxDepth, depth))
		w, ok := rankWeights[r.Rank]
		if !ok {
			w = rankWeights[newsletter.RankOther]
		}
		weights[i] = w * depth
	}

	prevMin := math.Inf(1)
	for start := 0; start < len(included); {
		end := start
		for end < len(included) && included[end].Rank == included[start].Rank {
			end++
		}
		groupMax, groupMin := 0.0, math.Inf(1)
		for i := start; i < end; i++ {
			groupMax = math.Max(groupMax, weights[i])
			groupMin = math.Min(groupMin, weights[i])
		}
		if groupMax > prevMin {
			scale := prevMin / groupMax
			for i := start; i < end; i++ {
				weights[i] = math.Min(weights[i]*scale, prevMin)
			}
			groupMin *= scale
		}
		prevMin = groupMin
		start = end
	}
	return weights
}

// apportion splits pool in proportion to weights. Leftover words from
// flooring go to the earliest documents so ordering between groups holds.
func apportion(weights []float64, pool int) []int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]int, len(weights))
	if total <= 0 {
		return out
	}
	assigned := 0
	for i, w := range weights {
		out[i] = int(math.Floor(float64(pool) * w / total))
		assigned += out[i]
	}
	for i := 0; assigned < pool; i = (i + 1) % len(out) {
		out[i]++
		assigned++
	}
	return out
}
