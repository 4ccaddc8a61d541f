package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/services"
	"letterpod/internal/textutil"
)

const (
	lowerDrift        = 0.85
	upperDrift        = 1.15
	coverageThreshold = 0.5
	defaultMaxTokens  = 8000
)

// Generator is the language-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Options configures the assembler.
type Options struct {
	PodcastName    string
	WordsPerMinute int
	BodyCharLimit  int
	MaxTokens      int
	Location       *time.Location
	Policy         services.Policy
}

// Result is an accepted script with its quality signals.
type Result struct {
	Script    newsletter.Script
	Words     int
	Target    int
	Attempts  int
	InRange   bool
	Uncovered []string
}

// Assembler produces one script per run.
type Assembler struct {
	gen    Generator
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an Assembler.
func New(gen Generator, opts Options, logger *slog.Logger) *Assembler {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Assembler{
		gen:    gen,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "assembler"),
		now:    time.Now,
	}
}

// Assemble builds the prompt, calls the generator under the retry policy, and
// validates the reply. Exhausted retries return a fatal pipeline error.
func (a *Assembler) Assemble(ctx context.Context, set newsletter.InclusionSet) (Result, error) {
	if len(set.Items) == 0 {
		return Result{}, services.Fatal("assembling", "nothing to narrate", services.ErrValidation)
	}
	logger := logging.WithContext(ctx, a.logger)
	prompt := BuildPrompt(PromptInput{
		PodcastName:    a.opts.PodcastName,
		Date:           a.now().In(a.opts.Location),
		Set:            set,
		WordsPerMinute: a.opts.WordsPerMinute,
		BodyCharLimit:  a.opts.BodyCharLimit,
	})
	logger.Info("requesting script",
		logging.String(logging.FieldEventType, "script_request"),
		logging.Int("documents", len(set.Items)),
		logging.Int("target_words", set.TargetWords),
		logging.Int("prompt_chars", len(prompt)),
		logging.Bool("thin", set.Thin),
	)

	attempts := 0
	policy := a.opts.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Info("script generation retry scheduled",
			logging.String(logging.FieldEventType, "script_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String("kind", string(services.Classify(err))),
			logging.Error(err),
		)
	}
	script, err := services.Retry(ctx, policy, "generate script", func(ctx context.Context) (newsletter.Script, error) {
		attempts++
		text, err := a.gen.Generate(ctx, prompt, a.opts.MaxTokens)
		if err != nil {
			return newsletter.Script{}, err
		}
		return validate(text)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, services.Fatal("assembling", "script generation failed", err)
	}

	result := Result{
		Script:   script,
		Words:    script.Words(),
		Target:   set.TargetWords,
		Attempts: attempts,
	}
	result.InRange = withinDrift(result.Words, set.TargetWords)
	if !result.InRange {
		logging.WarnWithContext(logger, "script length outside target range",
			"script_length_drift",
			logging.Int("words", result.Words),
			logging.Int("target_words", set.TargetWords),
			logging.Int("min_words", int(lowerDrift*float64(set.TargetWords))),
			logging.Int("max_words", int(upperDrift*float64(set.TargetWords))),
			logging.String(logging.FieldErrorHint, "tune podcast.duration_minutes or the model"),
			logging.String(logging.FieldImpact, "episode runs shorter or longer than configured"),
		)
	}
	result.Uncovered = uncovered(set, script.Text())
	if len(result.Uncovered) > 0 {
		logging.WarnWithContext(logger, "script may not cover every newsletter",
			"script_coverage_gap",
			logging.Strings("uncovered_documents", result.Uncovered),
			logging.String(logging.FieldErrorHint, "review the episode for skipped topics"),
			logging.String(logging.FieldImpact, "some newsletters may be summarized only briefly"),
		)
	}
	logger.Info("script accepted",
		logging.String(logging.FieldEventType, "script_accepted"),
		logging.Int("words", result.Words),
		logging.Int("attempts", attempts),
		logging.Bool("in_range", result.InRange),
	)
	return result, nil
}

// validate cleans the reply and checks its structure. A reply without a
// distinct opening and closing paragraph is malformed.
func validate(text string) (newsletter.Script, error) {
	script := newsletter.ParseScript(Clean(text))
	switch {
	case script.Opening == "" && script.Closing == "":
		return script, services.Wrap(services.ErrMalformed, "assembling", "validate", "empty script", nil)
	case script.Closing == "":
		return script, services.Wrap(services.ErrMalformed, "assembling", "validate",
			fmt.Sprintf("no closing region (%d words in one paragraph)", script.Words()), nil)
	}
	return script, nil
}

func withinDrift(words, target int) bool {
	if target <= 0 {
		return true
	}
	w := float64(words)
	return w >= lowerDrift*float64(target) && w <= upperDrift*float64(target)
}

// uncovered returns ids of documents whose subject shares too few terms with
// the script.
func uncovered(set newsletter.InclusionSet, text string) []string {
	var ids []string
	for _, item := range set.Items {
		if textutil.TokenOverlap(item.Document.Subject, text) < coverageThreshold {
			ids = append(ids, item.Document.ID)
		}
	}
	return ids
}
