package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/services"
)

const (
	// DefaultMaxChunkBytes keeps each synthesis request under the provider's
	// 5000 byte input limit. The ceiling is in UTF-8 bytes, not characters.
	DefaultMaxChunkBytes  = 4800
	defaultWordsPerMinute = 150
)

// Voice selects the synthesized speaker and output encoding.
type Voice struct {
	Name         string
	LanguageCode string
	Encoding     string
	SpeakingRate float64
}

// Synthesizer converts one chunk of text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// Transcoder re-encodes concatenated audio.
type Transcoder interface {
	Transcode(ctx context.Context, audio []byte) ([]byte, error)
}

// Options configures a Renderer.
type Options struct {
	Voice          Voice
	MaxChunkBytes  int
	WordsPerMinute int
	Policy         services.Policy
}

// Renderer drives synthesis with the degradation chain.
type Renderer struct {
	synth      Synthesizer
	transcoder Transcoder
	opts       Options
	logger     *slog.Logger
}

// New constructs a Renderer. transcoder may be nil.
func New(synth Synthesizer, transcoder Transcoder, opts Options, logger *slog.Logger) *Renderer {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = DefaultMaxChunkBytes
	}
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = defaultWordsPerMinute
	}
	if opts.Voice.Encoding == "" {
		opts.Voice.Encoding = "MP3"
	}
	return &Renderer{
		synth:      synth,
		transcoder: transcoder,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "renderer"),
	}
}

// Render returns FullAudio when every chunk synthesizes, otherwise TextOnly.
// The only errors are cancellation and an empty script.
func (r *Renderer) Render(ctx context.Context, script newsletter.Script) (newsletter.RenderResult, error) {
	text := script.Text()
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "rendering", "render", "empty script", nil)
	}
	logger := logging.WithContext(ctx, r.logger)

	chunks := Chunk(text, r.opts.MaxChunkBytes)
	logger.Info("synthesizing narration",
		logging.String(logging.FieldEventType, "synthesis_start"),
		logging.Int("chunks", len(chunks)),
		logging.Int("bytes", len(text)),
		logging.String("voice", r.opts.Voice.Name),
	)

	if r.synth == nil {
		return r.degrade(logger, text, errors.New("no synthesizer configured")), nil
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		policy := r.opts.Policy
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Info("synthesis retry scheduled",
				logging.String(logging.FieldEventType, "synthesis_retry"),
				logging.Int("chunk", i+1),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
		}
		op := fmt.Sprintf("synthesize chunk %d/%d", i+1, len(chunks))
		data, err := services.Retry(ctx, policy, op, func(ctx context.Context) ([]byte, error) {
			return r.synth.Synthesize(ctx, chunk, r.opts.Voice)
		})
		if err == nil && len(data) == 0 {
			err = services.Wrap(services.ErrMalformed, "rendering", op, "empty audio", nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return r.degrade(logger, text, err), nil
		}
		audio.Write(data)
	}

	payload := audio.Bytes()
	if r.transcoder != nil {
		encoded, err := r.transcoder.Transcode(ctx, payload)
		switch {
		case err == nil && len(encoded) > 0:
			payload = encoded
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			logging.WarnWithContext(logger, "transcode failed; delivering synthesizer output",
				"transcode_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ffmpeg installation with letterpod doctor"),
				logging.String(logging.FieldImpact, "audio keeps the synthesizer bitrate"),
			)
		}
	}

	result := newsletter.FullAudio{
		Audio:    payload,
		Format:   strings.ToLower(r.opts.Voice.Encoding),
		Duration: EstimateDuration(script.Words(), r.opts.WordsPerMinute),
		Chunks:   len(chunks),
	}
	logger.Info("narration synthesized",
		logging.String(logging.FieldEventType, "synthesis_complete"),
		logging.Int("bytes", len(payload)),
		logging.Duration("estimated_duration", result.Duration),
	)
	return result, nil
}

func (r *Renderer) degrade(logger *slog.Logger, text string, err error) newsletter.RenderResult {
	reason := services.FailureClass(err)
	logging.WarnWithContext(logger, "synthesis failed; degrading to text-only",
		"render_degraded",
		logging.Error(err),
		logging.String("degradation", string(newsletter.KindTextOnly)),
		logging.String(logging.FieldErrorHint, "check speech service credentials and quota"),
		logging.String(logging.FieldImpact, "recipient receives the script instead of audio"),
	)
	return newsletter.TextOnly{Text: text, Reason: reason}
}

// EstimateDuration converts a word count to speaking time.
func EstimateDuration(words, wordsPerMinute int) time.Duration {
	if words <= 0 || wordsPerMinute <= 0 {
		return 0
	}
	return time.Duration(float64(words) / float64(wordsPerMinute) * float64(time.Minute)).Round(time.Second)
}
