package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"letterpod/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	EnvFile    string `toml:"env_file"`
}

type Mail struct {
	User            string `toml:"user"`
	Recipient       string `toml:"recipient"`
	SourceLabel     string `toml:"source_label"`
	ProcessedLabel  string `toml:"processed_label"`
	DegradedLabel   string `toml:"degraded_label"`
	WindowHours     int    `toml:"window_hours"`
	MaxFetch        int    `toml:"max_fetch"`
	AttachmentMaxMB int    `toml:"attachment_max_mb"`
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RefreshToken    string `toml:"refresh_token"`
	CredentialsFile string `toml:"credentials_file"`
	Endpoint        string `toml:"endpoint"`
}

type Podcast struct {
	Name            string `toml:"name"`
	DurationMinutes int    `toml:"duration_minutes"`
	WordsPerMinute  int    `toml:"words_per_minute"`
	MaxDocuments    int    `toml:"max_documents"`
	MaxTotalChars   int    `toml:"max_total_chars"`
	BodyCharLimit   int    `toml:"body_char_limit"`
	Timezone        string `toml:"timezone"`
}

type LLM struct {
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
}

type Cohere struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

type TTS struct {
	APIKey          string  `toml:"api_key"`
	CredentialsFile string  `toml:"credentials_file"`
	Endpoint        string  `toml:"endpoint"`
	Voice           string  `toml:"voice"`
	LanguageCode    string  `toml:"language_code"`
	SpeakingRate    float64 `toml:"speaking_rate"`
	MaxChunkBytes   int     `toml:"max_chunk_bytes"`
	Transcode       bool    `toml:"transcode"`
	Bitrate         string  `toml:"bitrate"`
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
}

type ObjectStore struct {
	Enabled      bool   `toml:"enabled"`
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Profile      string `toml:"profile"`
	UsePathStyle bool   `toml:"use_path_style"`
	LinkTTLHours int    `toml:"link_ttl_hours"`
}

type Retry struct {
	MaxAttempts        int     `toml:"max_attempts"`
	MalformedAttempts  int     `toml:"malformed_attempts"`
	BaseDelaySeconds   float64 `toml:"base_delay_seconds"`
	MaxDelaySeconds    float64 `toml:"max_delay_seconds"`
	Jitter             float64 `toml:"jitter"`
	CallTimeoutSeconds int     `toml:"call_timeout_seconds"`
}

type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStart       bool   `toml:"run_start"`
	RunComplete    bool   `toml:"run_complete"`
	Degraded       bool   `toml:"degraded"`
	Failures       bool   `toml:"failures"`
}

type Lock struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Key           string `toml:"key"`
	TTLMinutes    int    `toml:"ttl_minutes"`
}

type Events struct {
	Enabled  bool     `toml:"enabled"`
	Brokers  []string `toml:"brokers"`
	Topic    string   `toml:"topic"`
	ClientID string   `toml:"client_id"`
}

type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

type Schedule struct {
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
}

type Secrets struct {
	Region  string `toml:"region"`
	Profile string `toml:"profile"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

type Config struct {
	Paths         Paths         `toml:"paths"`
	Mail          Mail          `toml:"mail"`
	Podcast       Podcast       `toml:"podcast"`
	LLM           LLM           `toml:"llm"`
	Cohere        Cohere        `toml:"cohere"`
	TTS           TTS           `toml:"tts"`
	ObjectStore   ObjectStore   `toml:"object_store"`
	Retry         Retry         `toml:"retry"`
	Notifications Notifications `toml:"notifications"`
	Lock          Lock          `toml:"lock"`
	Events        Events        `toml:"events"`
	API           API           `toml:"api"`
	Schedule      Schedule      `toml:"schedule"`
	Secrets       Secrets       `toml:"secrets"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path (or the default locations), applies
// environment fallbacks, and validates the result. It returns the resolved
// path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// TargetWords is the global word ceiling W = duration x words per minute.
func (c *Config) TargetWords() int {
	return c.Podcast.DurationMinutes * c.Podcast.WordsPerMinute
}

// AttachmentLimitBytes is the raw attachment size that still fits the mail
// transport ceiling after base64 expansion.
func (c *Config) AttachmentLimitBytes() int64 {
	transport := int64(c.Mail.AttachmentMaxMB) << 20
	return transport * 3 / 4
}

// Window is the trailing fetch window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Mail.WindowHours) * time.Hour
}

// Location returns the timezone used for dates in subjects and file names.
func (c *Config) Location() *time.Location {
	if c.Podcast.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Podcast.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RetryPolicy builds the external call policy from [retry].
func (c *Config) RetryPolicy() services.Policy {
	p := services.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.MalformedAttempts = c.Retry.MalformedAttempts
	p.BaseDelay = time.Duration(c.Retry.BaseDelaySeconds * float64(time.Second))
	p.MaxDelay = time.Duration(c.Retry.MaxDelaySeconds * float64(time.Second))
	p.Jitter = c.Retry.Jitter
	p.Timeout = time.Duration(c.Retry.CallTimeoutSeconds) * time.Second
	return p
}

// LinkTTL is how long presigned links stay valid.
func (c *Config) LinkTTL() time.Duration {
	return time.Duration(c.ObjectStore.LinkTTLHours) * time.Hour
}

// LockTTL bounds how long a crashed run can hold the distributed lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Lock.TTLMinutes) * time.Minute
}

// LLMConfig contains the language-generation connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the OpenRouter connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
