package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"letterpod/internal/services"
)

func chatResponse(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	payload := map[string]any{"choices": []any{choice}}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientGenerate(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		chatResponse(t, w, map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": "Good morning.\n\nStory.\n\nSee you tomorrow."},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	text, err := client.Generate(context.Background(), "write the episode", 6000)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.HasPrefix(text, "Good morning.") {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "demo-model" || got.MaxTokens != 6000 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "write the episode" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestClientGenerateDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": "streamed script"}},
		"legacy": {"text": "legacy script"},
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				chatResponse(t, w, choice)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
			text, err := client.Generate(context.Background(), "prompt", 0)
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if !strings.HasSuffix(text, "script") {
				t.Fatalf("unexpected text %q", text)
			}
		})
	}
}

func TestClientGenerateEmptyContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	_, err := client.Generate(context.Background(), "prompt", 0)
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if !strings.Contains(err.Error(), "response_snippet=") || !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected diagnostic detail, got %v", err)
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   services.Kind
	}{
		{http.StatusTooManyRequests, services.KindTransient},
		{http.StatusServiceUnavailable, services.KindTransient},
		{http.StatusRequestTimeout, services.KindTransient},
		{http.StatusUnauthorized, services.KindFatal},
		{http.StatusBadRequest, services.KindFatal},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
		_, err := client.Generate(context.Background(), "prompt", 0)
		server.Close()
		if got := services.Classify(err); got != tt.want {
			t.Errorf("status %d classified %q, want %q (%v)", tt.status, got, tt.want, err)
		}
	}
}

func TestClientInBandErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"upstream overloaded","code":502}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	_, err := client.Generate(context.Background(), "prompt", 0)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClientUndecodableBodyIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	_, err := client.Generate(context.Background(), "prompt", 0)
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestClientRetryAfterHonouredByPolicy(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatResponse(t, w, map[string]any{"message": map[string]any{"content": "script"}})
	}))
	defer server.Close()

	var slept []time.Duration
	policy := services.DefaultPolicy()
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	text, err := services.Retry(context.Background(), policy, "generate", func(ctx context.Context) (string, error) {
		return client.Generate(ctx, "prompt", 0)
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if text != "script" || calls != 2 {
		t.Fatalf("text=%q calls=%d", text, calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	if _, err := client.Generate(context.Background(), "prompt", 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, map[string]any{"message": map[string]any{"content": "OK"}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative seconds should be ignored")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage should be ignored")
	}
}
