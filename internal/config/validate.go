package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"letterpod/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateMail,
		c.validatePodcast,
		c.validateLLM,
		c.validateTTS,
		c.validateObjectStore,
		c.validateRetry,
		c.validateLock,
		c.validateEvents,
		c.validateSchedule,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "config", "validate", fmt.Sprintf(format, args...), nil)
}

func (c *Config) validateMail() error {
	if c.Mail.Recipient == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return invalid("mail.recipient is required. Set LETTERPOD_RECIPIENT or edit %s (create with 'letterpod config init')", defaultPath)
	}
	if !strings.Contains(c.Mail.Recipient, "@") {
		return invalid("mail.recipient %q is not an email address", c.Mail.Recipient)
	}
	if c.Mail.CredentialsFile == "" && c.Mail.RefreshToken == "" {
		return invalid("mail credentials missing: set mail.refresh_token (with client_id/client_secret) or mail.credentials_file")
	}
	if c.Mail.RefreshToken != "" && (c.Mail.ClientID == "" || c.Mail.ClientSecret == "") {
		return invalid("mail.client_id and mail.client_secret are required with mail.refresh_token")
	}
	if c.Mail.SourceLabel == c.Mail.ProcessedLabel {
		return invalid("mail.source_label and mail.processed_label must differ")
	}
	if c.Mail.WindowHours <= 0 {
		return invalid("mail.window_hours must be positive")
	}
	if c.Mail.MaxFetch <= 0 {
		return invalid("mail.max_fetch must be positive")
	}
	if c.Mail.AttachmentMaxMB <= 0 {
		return invalid("mail.attachment_max_mb must be positive")
	}
	return nil
}

func (c *Config) validatePodcast() error {
	if c.Podcast.DurationMinutes <= 0 {
		return invalid("podcast.duration_minutes must be positive")
	}
	if c.Podcast.WordsPerMinute <= 0 {
		return invalid("podcast.words_per_minute must be positive")
	}
	if c.Podcast.MaxDocuments <= 0 {
		return invalid("podcast.max_documents must be positive")
	}
	if c.Podcast.MaxTotalChars < 0 {
		return invalid("podcast.max_total_chars must not be negative")
	}
	if c.Podcast.Timezone != "" {
		if _, err := time.LoadLocation(c.Podcast.Timezone); err != nil {
			return invalid("podcast.timezone %q: %v", c.Podcast.Timezone, err)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case "openrouter":
		if c.LLM.APIKey == "" {
			return invalid("llm.api_key is required for provider openrouter. Set OPENROUTER_API_KEY")
		}
	case "cohere":
		if c.Cohere.APIKey == "" {
			return invalid("cohere.api_key is required for provider cohere. Set CO_API_KEY")
		}
	default:
		return invalid("llm.provider must be openrouter or cohere, got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return invalid("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.MaxChunkBytes < 200 || c.TTS.MaxChunkBytes > 5000 {
		return invalid("tts.max_chunk_bytes must be between 200 and 5000")
	}
	if c.TTS.SpeakingRate < 0.25 || c.TTS.SpeakingRate > 4.0 {
		return invalid("tts.speaking_rate must be between 0.25 and 4.0")
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	if !c.ObjectStore.Enabled {
		return nil
	}
	if c.ObjectStore.Bucket == "" {
		return invalid("object_store.bucket must be set when object_store.enabled is true")
	}
	if c.ObjectStore.LinkTTLHours > 168 {
		return invalid("object_store.link_ttl_hours cannot exceed 168 (presign limit)")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 || c.Retry.MalformedAttempts < 1 {
		return invalid("retry.max_attempts and retry.malformed_attempts must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return invalid("retry.jitter must be between 0 and 1")
	}
	if c.Retry.BaseDelaySeconds < 0 || c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return invalid("retry.max_delay_seconds must be >= retry.base_delay_seconds >= 0")
	}
	if c.Retry.CallTimeoutSeconds <= 0 {
		return invalid("retry.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLock() error {
	switch c.Lock.Backend {
	case "file":
		return nil
	case "redis":
		if c.Lock.RedisAddr == "" {
			return invalid("lock.redis_addr must be set when lock.backend is redis")
		}
		return nil
	default:
		return invalid("lock.backend must be file or redis, got %q", c.Lock.Backend)
	}
}

func (c *Config) validateEvents() error {
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return invalid("events.brokers must be set when events.enabled is true")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return invalid("schedule.cron %q: %v", c.Schedule.Cron, err)
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return invalid("schedule.timezone %q: %v", c.Schedule.Timezone, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return invalid("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
