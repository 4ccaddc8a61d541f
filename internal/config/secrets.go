package config

import (
	"context"
	"strings"

	"letterpod/internal/services"
)

// SecretPrefix marks a credential value that names a parameter store entry
// instead of holding the secret itself, e.g. "ssm:/letterpod/openrouter".
const SecretPrefix = "ssm:"

// SecretResolver fetches a secret by parameter name.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"mail.client_id":           &c.Mail.ClientID,
		"mail.client_secret":       &c.Mail.ClientSecret,
		"mail.refresh_token":       &c.Mail.RefreshToken,
		"llm.api_key":              &c.LLM.APIKey,
		"cohere.api_key":           &c.Cohere.APIKey,
		"tts.api_key":              &c.TTS.APIKey,
		"lock.redis_password":      &c.Lock.RedisPassword,
		"api.token":                &c.API.Token,
		"notifications.ntfy_topic": &c.Notifications.NtfyTopic,
	}
}

// HasSecretRefs reports whether any credential still points at the parameter store.
func (c *Config) HasSecretRefs() bool {
	for _, field := range c.secretFields() {
		if strings.HasPrefix(*field, SecretPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every "ssm:" credential reference with the value
// returned by resolver.
func (c *Config) ResolveSecrets(ctx context.Context, resolver SecretResolver) error {
	for key, field := range c.secretFields() {
		name, ok := strings.CutPrefix(*field, SecretPrefix)
		if !ok {
			continue
		}
		if resolver == nil {
			return services.Wrap(services.ErrConfiguration, "config", "secrets", key+" references the parameter store but no resolver is configured", nil)
		}
		value, err := resolver.Resolve(ctx, strings.TrimSpace(name))
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "secrets", "resolve "+key, err)
		}
		*field = strings.TrimSpace(value)
	}
	return nil
}

// Redacted returns a copy with every credential masked. Parameter store
// references are kept since they name a secret rather than hold it.
func (c Config) Redacted() Config {
	out := c
	out.Events.Brokers = append([]string(nil), c.Events.Brokers...)
	for _, field := range out.secretFields() {
		if *field != "" && !strings.HasPrefix(*field, SecretPrefix) {
			*field = "********"
		}
	}
	return out
}
