// Package tts adapts Google Cloud Text-to-Speech as the speech-synthesis
// collaborator.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"letterpod/internal/render"
	"letterpod/internal/services"
)

// Config selects credentials for the speech API. APIKey wins over
// CredentialsFile; with neither, application default credentials apply.
type Config struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// Client synthesizes speech through the REST API.
type Client struct {
	svc *texttospeech.Service
}

// New creates the speech service client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case strings.TrimSpace(cfg.APIKey) != "":
		opts = append(opts, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(strings.TrimSpace(cfg.CredentialsFile)))
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "new", "create speech client", err)
	}
	return &Client{svc: svc}, nil
}

// Synthesize implements render.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text string, voice render.Voice) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "empty text", nil)
	}
	language := voice.LanguageCode
	if language == "" {
		language = languageFromVoice(voice.Name)
	}
	encoding := voice.Encoding
	if encoding == "" {
		encoding = "MP3"
	}
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: language,
			Name:         voice.Name,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: strings.ToUpper(encoding),
			SpeakingRate:  voice.SpeakingRate,
		},
	}
	resp, err := c.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, classify("synthesize", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformed, "tts", "synthesize", "decode audio content", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrMalformed, "tts", "synthesize", "empty audio content", nil)
	}
	return audio, nil
}

// HealthCheck lists voices for the language to confirm credentials.
func (c *Client) HealthCheck(ctx context.Context, languageCode string) error {
	if languageCode == "" {
		languageCode = "en-US"
	}
	if _, err := c.svc.Voices.List().LanguageCode(languageCode).Context(ctx).Do(); err != nil {
		return classify("voices", err)
	}
	return nil
}

// languageFromVoice derives "en-US" from "en-US-Neural2-J".
func languageFromVoice(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "tts", op, "request timed out", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "tts", op, "speech service unavailable", err)
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "tts", op, "credentials rejected", err)
		case apiErr.Code == http.StatusBadRequest:
			return services.Wrap(services.ErrConstraint, "tts", op, "request rejected", err)
		default:
			return services.Wrap(services.ErrFatal, "tts", op, "request failed", err)
		}
	}
	return services.Wrap(services.ErrTransient, "tts", op, "request failed", err)
}
