package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"letterpod/internal/config"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckProbe(t *testing.T) {
	tests := []struct {
		name   string
		probe  stage.Probe
		passed bool
		detail string
	}{
		{name: "ok", probe: stage.Probe{Name: "mail", Check: func(context.Context) error { return nil }}, passed: true, detail: "reachable"},
		{name: "unconfigured", probe: stage.Probe{Name: "speech"}, detail: "not configured"},
		{name: "timeout", probe: stage.Probe{Name: "llm", Check: func(context.Context) error { return context.DeadlineExceeded }}, detail: "health check timed out (service unresponsive)"},
		{name: "auth", probe: stage.Probe{Name: "mail", Check: func(context.Context) error {
			return services.Wrap(services.ErrConfiguration, "gmail", "profile", "401", nil)
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckProbe(context.Background(), tt.probe)
			if got.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", got.Passed, tt.passed, got.Detail)
			}
			if tt.detail != "" && got.Detail != tt.detail {
				t.Fatalf("detail = %q, want %q", got.Detail, tt.detail)
			}
		})
	}
}

func TestRunAllReportsMissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.TTS.Transcode = false

	results := RunAll(context.Background(), &cfg, stage.Probe{Name: "Mailbox", Check: func(context.Context) error {
		return errors.New("boom")
	}})
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Scratch directory"].Passed {
		t.Fatalf("scratch dir should pass: %+v", byName["Scratch directory"])
	}
	if byName["Mail credentials"].Passed || byName["LLM credentials"].Passed {
		t.Fatalf("credential checks should fail on defaults: %+v", results)
	}
	if byName["Mailbox"].Passed || byName["Mailbox"].Detail != "boom" {
		t.Fatalf("probe result = %+v", byName["Mailbox"])
	}
	if _, ok := byName["FFmpeg"]; ok {
		t.Fatal("ffmpeg is not checked when transcoding is off")
	}
	if !Failed(results) {
		t.Fatal("expected overall failure")
	}
}

func TestFailedIgnoresOptional(t *testing.T) {
	results := []Result{{Name: "a", Passed: true}, {Name: "FFmpeg", Optional: true}}
	if Failed(results) {
		t.Fatal("optional failures must not fail the run")
	}
}
