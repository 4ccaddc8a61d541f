package preflight

import (
	"context"
	"strings"

	"letterpod/internal/config"
	"letterpod/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures are reported but do not fail the doctor command.
	Optional bool
}

// RunAll executes the local checks followed by every probe.
func RunAll(ctx context.Context, cfg *config.Config, probes ...stage.Probe) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir)}
	if cfg.TTS.Transcode {
		results = append(results, CheckFFmpeg(cfg.TTS.FFmpegBinary))
	}
	results = append(results, CheckCredentials(cfg)...)
	for _, probe := range probes {
		results = append(results, CheckProbe(ctx, probe))
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// CheckCredentials verifies that each collaborator has credentials
// configured, without contacting it.
func CheckCredentials(cfg *config.Config) []Result {
	var results []Result

	mail := Result{Name: "Mail credentials"}
	switch {
	case cfg.Mail.RefreshToken != "" && cfg.Mail.ClientID != "" && cfg.Mail.ClientSecret != "":
		mail.Passed, mail.Detail = true, "oauth refresh token"
	case cfg.Mail.CredentialsFile != "":
		mail.Passed, mail.Detail = true, "service account "+cfg.Mail.CredentialsFile
	default:
		mail.Detail = "set mail.refresh_token with client id/secret, or mail.credentials_file"
	}
	results = append(results, mail)

	llm := Result{Name: "LLM credentials"}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "cohere":
		llm.Passed = cfg.Cohere.APIKey != ""
		llm.Detail = "cohere " + cfg.Cohere.Model
	default:
		llm.Passed = cfg.LLM.APIKey != ""
		llm.Detail = "openrouter " + cfg.LLM.Model
	}
	if !llm.Passed {
		llm.Detail += " (API key missing)"
	}
	results = append(results, llm)

	speech := Result{Name: "Speech credentials", Passed: true}
	switch {
	case cfg.TTS.APIKey != "":
		speech.Detail = "API key"
	case cfg.TTS.CredentialsFile != "":
		speech.Detail = "service account " + cfg.TTS.CredentialsFile
	default:
		speech.Detail = "application default credentials"
	}
	results = append(results, speech)

	if cfg.ObjectStore.Enabled {
		store := Result{Name: "Object store", Optional: true, Passed: cfg.ObjectStore.Bucket != ""}
		store.Detail = "s3://" + cfg.ObjectStore.Bucket
		if !store.Passed {
			store.Detail = "object_store.bucket missing; oversize episodes will fail"
		}
		results = append(results, store)
	}
	return results
}
