package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMail()
	c.normalizePodcast()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeObjectStore()
	c.normalizeNotifications()
	c.normalizeLock()
	c.normalizeEvents()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	if c.Lock.Path = strings.TrimSpace(c.Lock.Path); c.Lock.Path == "" {
		c.Lock.Path = filepath.Join(c.Paths.ScratchDir, "letterpod.lock")
	}
	if c.Lock.Path, err = expandPath(c.Lock.Path); err != nil {
		return fmt.Errorf("lock.path: %w", err)
	}
	if c.Mail.CredentialsFile, err = expandPath(envFallback(c.Mail.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")); err != nil {
		return fmt.Errorf("mail.credentials_file: %w", err)
	}
	if c.TTS.CredentialsFile, err = expandPath(envFallback(c.TTS.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")); err != nil {
		return fmt.Errorf("tts.credentials_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeMail() {
	c.Mail.User = strings.TrimSpace(c.Mail.User)
	if c.Mail.User == "" {
		c.Mail.User = defaultMailUser
	}
	c.Mail.Recipient = envFallback(c.Mail.Recipient, "LETTERPOD_RECIPIENT")
	c.Mail.ClientID = envFallback(c.Mail.ClientID, "GMAIL_CLIENT_ID")
	c.Mail.ClientSecret = envFallback(c.Mail.ClientSecret, "GMAIL_CLIENT_SECRET")
	c.Mail.RefreshToken = envFallback(c.Mail.RefreshToken, "GMAIL_REFRESH_TOKEN")
	c.Mail.Endpoint = strings.TrimSpace(c.Mail.Endpoint)
	c.Mail.SourceLabel = stringDefault(c.Mail.SourceLabel, defaultSourceLabel)
	c.Mail.ProcessedLabel = stringDefault(c.Mail.ProcessedLabel, defaultProcessedLabel)
	c.Mail.DegradedLabel = strings.TrimSpace(c.Mail.DegradedLabel)
}

func (c *Config) normalizePodcast() {
	c.Podcast.Name = stringDefault(c.Podcast.Name, defaultPodcastName)
	c.Podcast.Timezone = strings.TrimSpace(c.Podcast.Timezone)
	if c.Podcast.BodyCharLimit <= 0 {
		c.Podcast.BodyCharLimit = defaultBodyCharLimit
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(stringDefault(c.LLM.Provider, defaultLLMProvider))
	c.LLM.APIKey = envFallback(c.LLM.APIKey, "OPENROUTER_API_KEY")
	c.LLM.BaseURL = stringDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = stringDefault(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = stringDefault(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	c.Cohere.APIKey = envFallback(c.Cohere.APIKey, "CO_API_KEY")
	c.Cohere.Model = stringDefault(c.Cohere.Model, defaultCohereModel)
	c.Cohere.BaseURL = strings.TrimSpace(c.Cohere.BaseURL)
}

func (c *Config) normalizeTTS() {
	c.TTS.APIKey = envFallback(c.TTS.APIKey, "GOOGLE_TTS_API_KEY")
	c.TTS.Endpoint = strings.TrimSpace(c.TTS.Endpoint)
	c.TTS.Voice = stringDefault(c.TTS.Voice, defaultVoice)
	c.TTS.LanguageCode = stringDefault(c.TTS.LanguageCode, defaultLanguageCode)
	if c.TTS.SpeakingRate == 0 {
		c.TTS.SpeakingRate = defaultSpeakingRate
	}
	if c.TTS.MaxChunkBytes <= 0 {
		c.TTS.MaxChunkBytes = defaultMaxChunkBytes
	}
	c.TTS.Bitrate = stringDefault(c.TTS.Bitrate, defaultBitrate)
	c.TTS.FFmpegBinary = stringDefault(c.TTS.FFmpegBinary, defaultFFmpegBinary)
}

func (c *Config) normalizeObjectStore() {
	c.ObjectStore.Bucket = envFallback(c.ObjectStore.Bucket, "LETTERPOD_BUCKET")
	c.ObjectStore.Region = envFallback(c.ObjectStore.Region, "AWS_REGION")
	c.ObjectStore.Profile = envFallback(c.ObjectStore.Profile, "AWS_PROFILE")
	c.ObjectStore.Prefix = strings.TrimLeft(strings.TrimSpace(c.ObjectStore.Prefix), "/")
	if c.ObjectStore.LinkTTLHours <= 0 {
		c.ObjectStore.LinkTTLHours = defaultLinkTTLHours
	}
	c.Secrets.Region = envFallback(c.Secrets.Region, "AWS_REGION")
	c.Secrets.Profile = envFallback(c.Secrets.Profile, "AWS_PROFILE")
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envFallback(c.Notifications.NtfyTopic, "LETTERPOD_NTFY_TOPIC")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLock() {
	c.Lock.Backend = strings.ToLower(stringDefault(c.Lock.Backend, defaultLockBackend))
	c.Lock.RedisAddr = envFallback(c.Lock.RedisAddr, "REDIS_ADDR")
	c.Lock.RedisPassword = envFallback(c.Lock.RedisPassword, "REDIS_PASSWORD")
	c.Lock.Key = stringDefault(c.Lock.Key, defaultLockKey)
	if c.Lock.TTLMinutes <= 0 {
		c.Lock.TTLMinutes = defaultLockTTLMinutes
	}
}

func (c *Config) normalizeEvents() {
	if len(c.Events.Brokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			c.Events.Brokers = strings.Split(value, ",")
		}
	}
	brokers := c.Events.Brokers[:0]
	for _, b := range c.Events.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Events.Brokers = brokers
	c.Events.Topic = stringDefault(c.Events.Topic, defaultEventsTopic)
	c.Events.ClientID = stringDefault(c.Events.ClientID, defaultEventsClientID)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = stringDefault(c.API.Bind, defaultAPIBind)
	c.API.Token = envFallback(c.API.Token, "LETTERPOD_API_TOKEN")
	c.Schedule.Cron = stringDefault(c.Schedule.Cron, defaultCron)
	c.Schedule.Timezone = strings.TrimSpace(c.Schedule.Timezone)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(stringDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(stringDefault(c.Logging.Level, defaultLogLevel))
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}

func stringDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
