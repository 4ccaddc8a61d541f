package config

const (
	defaultConfigPath        = "~/.config/letterpod/config.toml"
	projectConfigName        = "letterpod.toml"
	defaultScratchDir        = "~/.cache/letterpod"
	defaultLogDir            = "~/.local/share/letterpod/logs"
	defaultEnvFile           = ".env"
	defaultMailUser          = "me"
	defaultSourceLabel       = "newsletters-to-podcast"
	defaultProcessedLabel    = "podcast-processed"
	defaultDegradedLabel     = "podcast-degraded"
	defaultWindowHours       = 24
	defaultMaxFetch          = 100
	defaultAttachmentMaxMB   = 25
	defaultPodcastName       = "Daily Newsletter Podcast"
	defaultDurationMinutes   = 30
	defaultWordsPerMinute    = 150
	defaultMaxDocuments      = 10
	defaultMaxTotalChars     = 120000
	defaultBodyCharLimit     = 10000
	defaultLLMProvider       = "openrouter"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-2.5-flash"
	defaultLLMReferer        = "https://github.com/letterpod/letterpod"
	defaultLLMTitle          = "letterpod"
	defaultLLMTimeoutSeconds = 180
	defaultLLMTemperature    = 0.7
	defaultLLMMaxTokens      = 8000
	defaultCohereModel       = "command-r-plus"
	defaultVoice             = "en-US-Neural2-J"
	defaultLanguageCode      = "en-US"
	defaultSpeakingRate      = 1.0
	defaultMaxChunkBytes     = 4800
	defaultBitrate           = "64k"
	defaultFFmpegBinary      = "ffmpeg"
	defaultObjectPrefix      = "episodes/"
	defaultLinkTTLHours      = 168
	defaultRetryAttempts     = 3
	defaultMalformedAttempts = 2
	defaultRetryBaseDelay    = 2
	defaultRetryMaxDelay     = 30
	defaultRetryJitter       = 0.2
	defaultCallTimeout       = 120
	defaultNotifyTimeout     = 10
	defaultLockBackend       = "file"
	defaultLockKey           = "letterpod:run"
	defaultLockTTLMinutes    = 60
	defaultEventsTopic       = "letterpod.runs"
	defaultEventsClientID    = "letterpod"
	defaultAPIBind           = "127.0.0.1:7489"
	defaultCron              = "0 6 * * *"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			EnvFile:    defaultEnvFile,
		},
		Mail: Mail{
			User:            defaultMailUser,
			SourceLabel:     defaultSourceLabel,
			ProcessedLabel:  defaultProcessedLabel,
			DegradedLabel:   defaultDegradedLabel,
			WindowHours:     defaultWindowHours,
			MaxFetch:        defaultMaxFetch,
			AttachmentMaxMB: defaultAttachmentMaxMB,
		},
		Podcast: Podcast{
			Name:            defaultPodcastName,
			DurationMinutes: defaultDurationMinutes,
			WordsPerMinute:  defaultWordsPerMinute,
			MaxDocuments:    defaultMaxDocuments,
			MaxTotalChars:   defaultMaxTotalChars,
			BodyCharLimit:   defaultBodyCharLimit,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,
		},
		Cohere: Cohere{
			Model: defaultCohereModel,
		},
		TTS: TTS{
			Voice:         defaultVoice,
			LanguageCode:  defaultLanguageCode,
			SpeakingRate:  defaultSpeakingRate,
			MaxChunkBytes: defaultMaxChunkBytes,
			Transcode:     true,
			Bitrate:       defaultBitrate,
			FFmpegBinary:  defaultFFmpegBinary,
		},
		ObjectStore: ObjectStore{
			Prefix:       defaultObjectPrefix,
			LinkTTLHours: defaultLinkTTLHours,
		},
		Retry: Retry{
			MaxAttempts:        defaultRetryAttempts,
			MalformedAttempts:  defaultMalformedAttempts,
			BaseDelaySeconds:   defaultRetryBaseDelay,
			MaxDelaySeconds:    defaultRetryMaxDelay,
			Jitter:             defaultRetryJitter,
			CallTimeoutSeconds: defaultCallTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunComplete:    true,
			Degraded:       true,
			Failures:       true,
		},
		Lock: Lock{
			Backend:    defaultLockBackend,
			Key:        defaultLockKey,
			TTLMinutes: defaultLockTTLMinutes,
		},
		Events: Events{
			Topic:    defaultEventsTopic,
			ClientID: defaultEventsClientID,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Schedule: Schedule{
			Cron: defaultCron,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
	}
}
