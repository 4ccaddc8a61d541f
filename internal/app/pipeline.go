package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"letterpod/internal/budget"
	"letterpod/internal/config"
	"letterpod/internal/delivery"
	"letterpod/internal/deps"
	"letterpod/internal/events"
	"letterpod/internal/logging"
	"letterpod/internal/notifications"
	"letterpod/internal/prioritizer"
	"letterpod/internal/render"
	"letterpod/internal/runlock"
	"letterpod/internal/script"
	"letterpod/internal/services/cohere"
	"letterpod/internal/services/gmail"
	"letterpod/internal/services/llm"
	"letterpod/internal/services/objectstore"
	"letterpod/internal/services/tts"
	"letterpod/internal/stage"
	"letterpod/internal/state"
	"letterpod/internal/workflow"
)

// Generator is a script writer that can also be probed.
type Generator interface {
	script.Generator
	HealthCheck(ctx context.Context) error
}

// Pipeline is a fully wired manager plus the resources it holds open.
type Pipeline struct {
	Manager *workflow.Manager
	Probes  []stage.Probe
	closers []func() error
}

func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type BuildOptions struct {
	DryRun bool
}

// Build constructs every collaborator from configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Pipeline, error) {
	p := &Pipeline{}
	policy := cfg.RetryPolicy()
	loc := cfg.Location()

	mailbox, err := NewMailbox(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	speech, err := NewSpeech(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var store delivery.ObjectStore
	if cfg.ObjectStore.Enabled {
		s3store, err := objectstore.New(ctx, objectstore.Config{
			Bucket:       cfg.ObjectStore.Bucket,
			Prefix:       cfg.ObjectStore.Prefix,
			Region:       cfg.ObjectStore.Region,
			Profile:      cfg.ObjectStore.Profile,
			UsePathStyle: cfg.ObjectStore.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
		store = s3store
	}

	lock, err := newRunLock(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := lock.(interface{ Close() error }); ok {
		p.closers = append(p.closers, closer.Close)
	}

	var publisher workflow.EventPublisher
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(events.Config{
			Brokers:  cfg.Events.Brokers,
			Topic:    cfg.Events.Topic,
			ClientID: cfg.Events.ClientID,
		}, logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("run events: %w", err)
		}
		p.closers = append(p.closers, pub.Close)
		publisher = pub
	}

	p.Probes = collaboratorProbes(cfg, mailbox, gen, speech)

	collab := workflow.Collaborators{
		Source: mailbox,
		Prioritizer: prioritizer.New(prioritizer.Options{
			MaxDocuments:  cfg.Podcast.MaxDocuments,
			MaxTotalChars: cfg.Podcast.MaxTotalChars,
			BodyCharLimit: cfg.Podcast.BodyCharLimit,
		}, nil, logger),
		Allocator: budget.New(logger),
		Assembler: script.New(gen, script.Options{
			PodcastName:    cfg.Podcast.Name,
			WordsPerMinute: cfg.Podcast.WordsPerMinute,
			BodyCharLimit:  cfg.Podcast.BodyCharLimit,
			MaxTokens:      cfg.LLM.MaxTokens,
			Location:       loc,
			Policy:         policy,
		}, logger),
		Renderer: render.New(speech, newTranscoder(cfg, logger), render.Options{
			Voice: render.Voice{
				Name:         cfg.TTS.Voice,
				LanguageCode: cfg.TTS.LanguageCode,
				SpeakingRate: cfg.TTS.SpeakingRate,
			},
			MaxChunkBytes:  cfg.TTS.MaxChunkBytes,
			WordsPerMinute: cfg.Podcast.WordsPerMinute,
			Policy:         policy,
		}, logger),
		Delivery: delivery.New(mailbox, store, delivery.Options{
			Recipient:       cfg.Mail.Recipient,
			SourceLabel:     cfg.Mail.SourceLabel,
			AttachmentLimit: cfg.AttachmentLimitBytes(),
			LinkTTL:         cfg.LinkTTL(),
			Location:        loc,
			Policy:          policy,
		}, logger),
		Tracker: state.New(mailbox, state.Options{
			SourceLabel:    cfg.Mail.SourceLabel,
			ProcessedLabel: cfg.Mail.ProcessedLabel,
			DegradedLabel:  cfg.Mail.DegradedLabel,
			Policy:         policy,
		}, logger),
		Notifier: notifications.NewService(cfg),
		Lock:     lock,
		Probes:   p.Probes,
	}
	if publisher != nil {
		collab.Events = publisher
	}

	runOpts := workflow.OptionsFromConfig(cfg)
	runOpts.DryRun = opts.DryRun
	p.Manager = workflow.NewManager(collab, runOpts, logger)
	return p, nil
}

// NewMailbox authenticates against the configured mailbox.
func NewMailbox(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gmail.Client, error) {
	client, err := gmail.New(ctx, gmail.Config{
		User:            cfg.Mail.User,
		SourceLabel:     cfg.Mail.SourceLabel,
		MaxFetch:        cfg.Mail.MaxFetch,
		ClientID:        cfg.Mail.ClientID,
		ClientSecret:    cfg.Mail.ClientSecret,
		RefreshToken:    cfg.Mail.RefreshToken,
		CredentialsFile: cfg.Mail.CredentialsFile,
		Endpoint:        cfg.Mail.Endpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("mailbox: %w", err)
	}
	return client, nil
}

// NewGenerator selects the script generator named by llm.provider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "cohere":
		client, err := cohere.New(cohere.Config{
			APIKey:      cfg.Cohere.APIKey,
			Model:       cfg.Cohere.Model,
			BaseURL:     cfg.Cohere.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("cohere: %w", err)
		}
		return client, nil
	default:
		settings := cfg.GetLLM()
		return llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
			Temperature:    cfg.LLM.Temperature,
		}), nil
	}
}

// NewSpeech builds the speech synthesis client.
func NewSpeech(ctx context.Context, cfg *config.Config) (*tts.Client, error) {
	client, err := tts.New(ctx, tts.Config{
		APIKey:          cfg.TTS.APIKey,
		CredentialsFile: cfg.TTS.CredentialsFile,
		Endpoint:        cfg.TTS.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	return client, nil
}

// newTranscoder returns nil when transcoding is off or ffmpeg is missing;
// the renderer then ships the synthesized audio as-is.
func newTranscoder(cfg *config.Config, logger *slog.Logger) render.Transcoder {
	if !cfg.TTS.Transcode {
		return nil
	}
	status := deps.ResolveFFmpeg(cfg.TTS.FFmpegBinary)
	if !status.Available {
		logging.WarnWithContext(logger, "ffmpeg unavailable; audio is sent without transcoding", "transcoder_unavailable",
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set tts.ffmpeg_binary"),
		)
		return nil
	}
	return render.FFmpegTranscoder{
		Binary:     status.Command,
		Bitrate:    cfg.TTS.Bitrate,
		ScratchDir: cfg.Paths.ScratchDir,
	}
}

func newRunLock(cfg *config.Config) (runlock.Lock, error) {
	switch cfg.Lock.Backend {
	case "redis":
		return runlock.NewRedisLock(runlock.RedisConfig{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
			Key:      cfg.Lock.Key,
			TTL:      cfg.LockTTL(),
		}), nil
	default:
		lock, err := runlock.NewFileLock(cfg.Lock.Path)
		if err != nil {
			return nil, fmt.Errorf("run lock: %w", err)
		}
		return lock, nil
	}
}

func collaboratorProbes(cfg *config.Config, mailbox *gmail.Client, gen Generator, speech *tts.Client) []stage.Probe {
	return []stage.Probe{
		{Name: "Mailbox", Check: mailbox.HealthCheck},
		{Name: generatorProbeName(cfg), Check: gen.HealthCheck},
		speechProbe(cfg, speech),
	}
}

// FailedProbe reports a collaborator that could not even be constructed.
func FailedProbe(name string, err error) stage.Probe {
	return stage.Probe{Name: name, Check: func(context.Context) error { return err }}
}

// Probes builds each collaborator on its own so one bad credential does not
// hide the state of the others.
func Probes(ctx context.Context, cfg *config.Config, logger *slog.Logger) []stage.Probe {
	var probes []stage.Probe
	if mailbox, err := NewMailbox(ctx, cfg, logger); err != nil {
		probes = append(probes, FailedProbe("Mailbox", err))
	} else {
		probes = append(probes, stage.Probe{Name: "Mailbox", Check: mailbox.HealthCheck})
	}
	if gen, err := NewGenerator(cfg); err != nil {
		probes = append(probes, FailedProbe(generatorProbeName(cfg), err))
	} else {
		probes = append(probes, stage.Probe{Name: generatorProbeName(cfg), Check: gen.HealthCheck})
	}
	if speech, err := NewSpeech(ctx, cfg); err != nil {
		probes = append(probes, FailedProbe("Speech synthesis", err))
	} else {
		probes = append(probes, speechProbe(cfg, speech))
	}
	return probes
}

func generatorProbeName(cfg *config.Config) string {
	return "Script generator (" + cfg.LLM.Provider + ")"
}

func speechProbe(cfg *config.Config, speech *tts.Client) stage.Probe {
	return stage.Probe{Name: "Speech synthesis", Check: func(ctx context.Context) error {
		return speech.HealthCheck(ctx, cfg.TTS.LanguageCode)
	}}
}
